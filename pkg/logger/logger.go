package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化参数
type LogOption struct {
	Format   string // console / json
	LogDir   string // 日志目录，为空时只输出到 stdout
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩轮转后的旧文件
}

const (
	logFileName   = "router.log"
	maxSizeMB     = 200
	maxBackups    = 20
	maxAgeDays    = 7
	defaultFormat = "console"
)

var (
	mu     sync.RWMutex
	sugar  = zap.NewNop().Sugar()
	zapLog = zap.NewNop()
)

// Init 按配置初始化全局 logger，可重复调用（后一次覆盖前一次）
func Init(opt LogOption) error {
	level := zapcore.InfoLevel
	if opt.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opt.Level))); err != nil {
			return err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	format := opt.Format
	if format == "" {
		format = defaultFormat
	}
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return err
		}
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, logFileName),
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   opt.Compress,
			LocalTime:  true,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), zap.NewAtomicLevelAt(level))
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	zapLog = l
	sugar = l.Sugar()
	mu.Unlock()
	return nil
}

// Zap 返回底层 zap.Logger，供需要结构化字段的调用方使用
func Zap() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return zapLog
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debugf(template string, args ...interface{}) { current().Debugf(template, args...) }
func Infof(template string, args ...interface{})  { current().Infof(template, args...) }
func Warnf(template string, args ...interface{})  { current().Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { current().Errorf(template, args...) }

// Sync 刷新缓冲区，进程退出前调用
func Sync() {
	_ = Zap().Sync()
}
