package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quantlab/backtest-engine/internal/config"
	"github.com/stretchr/testify/suite"
)

type GenerateCmdTestSuite struct {
	suite.Suite
	tempDir string
}

func (suite *GenerateCmdTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "generate-cmd-test")
	suite.Require().NoError(err)
	suite.tempDir = tempDir

	err = os.Chdir(tempDir)
	suite.Require().NoError(err)
}

func (suite *GenerateCmdTestSuite) TearDownTest() {
	err := os.RemoveAll(suite.tempDir)
	suite.Require().NoError(err)
}

func (suite *GenerateCmdTestSuite) TestSchemaGeneration() {
	main()

	configDir := filepath.Join(suite.tempDir, "config")
	suite.True(dirExists(configDir), "Config directory should exist")

	schemaPath := filepath.Join(configDir, "backtest-engine-config.json")
	suite.True(fileExists(schemaPath), "Schema file should exist")

	schemaContent, err := os.ReadFile(schemaPath)
	suite.Require().NoError(err)
	suite.NotEmpty(schemaContent, "Schema file should not be empty")
}

func (suite *GenerateCmdTestSuite) TestSampleConfigGeneration() {
	main()

	sampleConfigPath := filepath.Join(suite.tempDir, "config", "backtest-engine-config.yaml")
	suite.True(fileExists(sampleConfigPath), "Sample config file should exist")

	sampleConfigContent, err := os.ReadFile(sampleConfigPath)
	suite.Require().NoError(err)
	suite.NotEmpty(sampleConfigContent, "Sample config file should not be empty")

	suite.Contains(string(sampleConfigContent), "# yaml-language-server: $schema=backtest-engine-config.json")
}

func (suite *GenerateCmdTestSuite) TestSampleConfigNotOverwritten() {
	main()

	sampleConfigPath := filepath.Join(suite.tempDir, "config", "backtest-engine-config.yaml")
	originalContent, err := os.ReadFile(sampleConfigPath)
	suite.Require().NoError(err)

	main()

	newContent, err := os.ReadFile(sampleConfigPath)
	suite.Require().NoError(err)
	suite.Equal(string(originalContent), string(newContent), "Sample config should not be overwritten")
}

func (suite *GenerateCmdTestSuite) TestGenerateSchemaFile() {
	schemaPath := filepath.Join(suite.tempDir, "test-schema", "schema.json")

	err := generateSchemaFile(schemaPath)
	suite.Require().NoError(err)

	suite.True(fileExists(schemaPath), "Schema file should exist")

	content, err := os.ReadFile(schemaPath)
	suite.Require().NoError(err)
	suite.NotEmpty(content, "Schema content should not be empty")

	suite.True(strings.HasPrefix(string(content), "{"), "Schema should start with {")
	suite.Contains(string(content), "$schema", "Schema should contain $schema field")
}

func (suite *GenerateCmdTestSuite) TestGenerateSchemaFileMultipleCalls() {
	schemaPath := filepath.Join(suite.tempDir, "test-schema2", "schema.json")

	err := generateSchemaFile(schemaPath)
	suite.Require().NoError(err)

	originalContent, err := os.ReadFile(schemaPath)
	suite.Require().NoError(err)

	err = generateSchemaFile(schemaPath)
	suite.Require().NoError(err)

	newContent, err := os.ReadFile(schemaPath)
	suite.Require().NoError(err)
	suite.Equal(string(originalContent), string(newContent), "Schema should be regenerated with same content")
}

func (suite *GenerateCmdTestSuite) TestGenerateSampleConfig() {
	cfg := config.Default()
	samplePath := filepath.Join(suite.tempDir, "sample-config.yaml")
	schemaName := "test-schema.json"

	err := generateSampleConfig(cfg, samplePath, schemaName)
	suite.Require().NoError(err)

	suite.True(fileExists(samplePath), "Sample config file should exist")

	content, err := os.ReadFile(samplePath)
	suite.Require().NoError(err)
	suite.Contains(string(content), "# yaml-language-server: $schema="+schemaName)
}

func (suite *GenerateCmdTestSuite) TestGenerateSampleConfigWithDifferentSchemaNames() {
	cfg := config.Default()

	testCases := []struct {
		schemaName  string
		samplePath  string
		expectedRef string
	}{
		{
			schemaName:  "custom-schema.json",
			samplePath:  filepath.Join(suite.tempDir, "test1.yaml"),
			expectedRef: "# yaml-language-server: $schema=custom-schema.json\n",
		},
		{
			schemaName:  "another-schema.json",
			samplePath:  filepath.Join(suite.tempDir, "test2.yaml"),
			expectedRef: "# yaml-language-server: $schema=another-schema.json\n",
		},
	}

	for _, tc := range testCases {
		err := generateSampleConfig(cfg, tc.samplePath, tc.schemaName)
		suite.Require().NoError(err)

		content, err := os.ReadFile(tc.samplePath)
		suite.Require().NoError(err)
		suite.Contains(string(content), tc.expectedRef, "Should contain correct schema reference")
	}
}

func (suite *GenerateCmdTestSuite) TestGenerateSampleConfigAlreadyExists() {
	cfg := config.Default()
	samplePath := filepath.Join(suite.tempDir, "existing-config.yaml")
	schemaName := "test-schema.json"

	originalContent := []byte("existing content")
	err := os.WriteFile(samplePath, originalContent, 0644)
	suite.Require().NoError(err)

	err = generateSampleConfig(cfg, samplePath, schemaName)
	suite.Require().NoError(err)

	content, err := os.ReadFile(samplePath)
	suite.Require().NoError(err)
	suite.Equal(string(originalContent), string(content), "Existing file should not be overwritten")
}

func (suite *GenerateCmdTestSuite) TestValidatePaths() {
	err := validatePaths("/some/path/schema.json", "/some/path/config.yaml")
	suite.NoError(err, "Valid paths should not return error")

	err = validatePaths("", "/some/path/config.yaml")
	suite.Error(err, "Empty schema path should return error")
	suite.Contains(err.Error(), "schema path cannot be empty")

	err = validatePaths("/some/path/schema.json", "")
	suite.Error(err, "Empty sample config path should return error")
	suite.Contains(err.Error(), "sample config path cannot be empty")

	err = validatePaths("", "")
	suite.Error(err, "Both empty paths should return error")
}

func (suite *GenerateCmdTestSuite) TestValidateSchemaName() {
	err := validateSchemaName("schema.json")
	suite.NoError(err, "Valid schema name should not return error")

	err = validateSchemaName("my-schema-file.json")
	suite.NoError(err, "Valid schema name with dashes should not return error")

	err = validateSchemaName("")
	suite.Error(err, "Empty schema name should return error")
	suite.Contains(err.Error(), "schema name cannot be empty")

	err = validateSchemaName("schema.txt")
	suite.Error(err, "Schema name without .json should return error")
	suite.Contains(err.Error(), "must have .json extension")

	err = validateSchemaName("schema")
	suite.Error(err, "Schema name without extension should return error")
}

func (suite *GenerateCmdTestSuite) TestGetSchemaReference() {
	ref := getSchemaReference("test-schema.json")
	suite.Equal("# yaml-language-server: $schema=test-schema.json\n", ref)

	ref = getSchemaReference("another.json")
	suite.Equal("# yaml-language-server: $schema=another.json\n", ref)

	ref = getSchemaReference("")
	suite.Equal("# yaml-language-server: $schema=\n", ref)
}

func (suite *GenerateCmdTestSuite) TestFileExists() {
	suite.False(fileExists(filepath.Join(suite.tempDir, "nonexistent.txt")))

	testFile := filepath.Join(suite.tempDir, "test-file.txt")
	err := os.WriteFile(testFile, []byte("test"), 0644)
	suite.Require().NoError(err)
	suite.True(fileExists(testFile))

	testDir := filepath.Join(suite.tempDir, "test-dir")
	err = os.Mkdir(testDir, 0755)
	suite.Require().NoError(err)
	suite.True(fileExists(testDir))
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return !os.IsNotExist(err) && info.IsDir()
}

func TestGenerateCmdSuite(t *testing.T) {
	suite.Run(t, new(GenerateCmdTestSuite))
}
