package pkg

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger 根据日志配置创建 logger, 同时写入标准错误和滚动文件
func NewLogger(logConfig *LogConfig) *zap.Logger {
	// 创建编码器配置
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "log",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "trace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,     // ISO8601时间格式
		EncodeDuration: zapcore.SecondsDurationEncoder, // 时间格式
		EncodeCaller:   zapcore.ShortCallerEncoder,     // 简短的调用者编码器 (文件名和行号)
	}
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	// 解析日志级别
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(logConfig.Level)); err != nil {
		level = zap.InfoLevel // 默认日志级别为 InfoLevel
	}

	// 标准输出留给命令结果, 日志写到标准错误
	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if logConfig.LogPath != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   logConfig.LogPath,    // 日志文件路径
			MaxSize:    logConfig.MaxSize,    // megabytes
			MaxBackups: logConfig.MaxBackups, // number of backups
			MaxAge:     logConfig.MaxAge,     // days
			Compress:   logConfig.Compress,   // compress old logs
			LocalTime:  true,
		}))
	}
	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)

	// 创建 Logger 并添加调用者信息和堆栈跟踪
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
