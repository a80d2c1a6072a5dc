package config

type (
	Log struct {
		Level     string `default:"info" desc:"日志级别 trace,debug,info,warn,error"`
		Path      string `desc:"滚动日志目录，为空时只输出到控制台"`
		MaxSize   uint64 `yaml:"maxsize" default:"104857600" desc:"单个日志文件最大字节数"`
		MaxFiles  uint64 `yaml:"maxfiles" default:"7" desc:"保留的日志文件数量"`
		Formatter string `default:"2006-01-02T15" desc:"日志文件名时间格式"`
		NoColor   bool   `yaml:"nocolor" desc:"控制台不输出颜色"`
	}
	Rewrite struct {
		RemoveFree  bool   `yaml:"removefree" default:"true" desc:"是否删除free atom"`
		ChunkSize   int    `yaml:"chunksize" default:"8192" desc:"复制数据块大小"`
		ProgressLog bool   `yaml:"progresslog" desc:"是否把进度写入日志"`
		Suffix      string `default:"_faststart" desc:"输出文件名后缀"`
		Replace     bool   `desc:"转换成功后替换源文件"`
		ReadBuffer  int    `yaml:"readbuffer" default:"131072" desc:"读缓冲页大小"`
		ReadPages   int    `yaml:"readpages" default:"4" desc:"读缓冲页数量"`
	}
	DB struct {
		Type string `default:"sqlite" desc:"数据库类型"`
		DSN  string `desc:"数据库连接串，为空时不记录转换历史"`
	}
	Metrics struct {
		Path string `desc:"prometheus textfile 路径，为空时不导出"`
	}
	FastStart struct {
		Log         Log
		Rewrite     Rewrite
		DB          DB
		Metrics     Metrics
		Concurrency int `default:"4" desc:"并发处理的文件数量"`
	}
)
