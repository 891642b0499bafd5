package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigFromFile 测试从YAML文件加载并填充缺省值
func TestLoadConfigFromFile(t *testing.T) {
	content := `
aliyun:
  api_key: "file-key"
  model: "qwen-plus"
  task_models:
    name_validation: "qwen-turbo"
extractor:
  max_skills: 30
mysql:
  host: "db.internal"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.Aliyun.APIKey)
	assert.Equal(t, "qwen-plus", cfg.Aliyun.Model)
	assert.Equal(t, "db.internal", cfg.MySQL.Host)
	assert.Equal(t, 30, cfg.Extractor.MaxSkills)

	// 未设置的项由applyDefaults补齐
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 3000, cfg.Extractor.HeaderChars)
	assert.Equal(t, "60s", cfg.Extractor.CallTimeout)
	assert.Equal(t, 4, cfg.Extractor.Concurrency)
	assert.InDelta(t, 0.5, cfg.Extractor.NameThreshold, 1e-9)
}

// TestLoadConfigEnvOverride 测试环境变量覆盖文件里的API配置
func TestLoadConfigEnvOverride(t *testing.T) {
	content := `
aliyun:
  api_key: "file-key"
  model: "qwen-plus"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("ALIYUN_API_KEY", "env-key")
	t.Setenv("ALIYUN_MODEL", "qwen-max")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Aliyun.APIKey)
	assert.Equal(t, "qwen-max", cfg.Aliyun.Model)
}

// TestLoadConfigMissingFileInTestEnv 测试测试环境下文件缺失回退到默认配置
func TestLoadConfigMissingFileInTestEnv(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "definitely-missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "qwen-plus", cfg.Aliyun.Model)
	assert.Equal(t, 3000, cfg.Extractor.HeaderChars)
	assert.NotEmpty(t, cfg.RabbitMQ.ExtractionExchange)
}

// TestLoadConfigInvalidYAML 测试YAML解析失败返回配置错误
func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliyun: [not a map"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// TestValidate 测试启动必需项校验
func TestValidate(t *testing.T) {
	cfg := createDefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Aliyun.APIKey = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = createDefaultConfig()
	cfg.Aliyun.Model = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	// 显式开启纯模式抽取后不再要求API配置
	cfg = createDefaultConfig()
	cfg.Aliyun.APIKey = ""
	cfg.Aliyun.Model = ""
	cfg.Extractor.PatternOnly = true
	assert.NoError(t, cfg.Validate())
}

// TestGetModelForTask 测试任务专用模型的选择逻辑
func TestGetModelForTask(t *testing.T) {
	cfg := &Config{}
	cfg.Aliyun.Model = "qwen-plus"
	cfg.Aliyun.TaskModels = map[string]string{
		"name_validation": "qwen-turbo",
		"header":          "",
	}

	assert.Equal(t, "qwen-turbo", cfg.GetModelForTask("name_validation"))
	// 未配置或配置为空的任务用默认模型
	assert.Equal(t, "qwen-plus", cfg.GetModelForTask("header"))
	assert.Equal(t, "qwen-plus", cfg.GetModelForTask("unknown_task"))

	cfg.Aliyun.TaskModels = nil
	assert.Equal(t, "qwen-plus", cfg.GetModelForTask("name_validation"))
}

// TestGetDuration 测试时长字符串解析和兜底
func TestGetDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, GetDuration("90s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("bogus", time.Minute))
}
