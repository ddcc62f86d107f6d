package conf

const (
	APP_NAME = "ds2api"
	APP_DESC = "DeepSeek to OpenAI/Claude API gateway"
)

// Populated via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	Author    = "yuanshang000"
	Repo      = "https://github.com/yuanshang000/ds2api"
)
