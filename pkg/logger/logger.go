package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogInfo 日志实例
type LogInfo struct {
	log       *zap.Logger
	debugMode bool
	mu        sync.Mutex
}

var (
	// Log 日志实例
	Log *LogInfo
)

// Initialize 按日期分文件的日志初始化
func Initialize(serviceName, logDir string) *LogInfo {
	var (
		l = new(LogInfo)
	)
	// 确保日志目录存在
	if err := os.MkdirAll(logDir, 0755); err != nil {
		panic(fmt.Sprintf("Failed to create log directory: %v", err))
	}

	logFile := func() string {
		date := time.Now().Format("2006-01-02")
		return filepath.Join(logDir, fmt.Sprintf("log_%s.log", date))
	}

	// INFO 和 ERROR 输出到文件和控制台
	infoErrorCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.NewMultiWriteSyncer(
			zapcore.AddSync(os.Stdout),
			zapcore.AddSync(getFileWriter(logFile())),
		),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= zap.InfoLevel && level <= zap.ErrorLevel
		}),
	)

	// DEBUG 仅控制台，根据 debugMode 控制
	debugCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			l.mu.Lock()
			defer l.mu.Unlock()
			return l.debugMode && level == zapcore.DebugLevel
		}),
	)

	// WARN 仅控制台
	warnCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level == zapcore.WarnLevel
		}),
	)

	core := zapcore.NewTee(infoErrorCore, debugCore, warnCore)
	l.log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.Fields(zap.String("service", serviceName)))

	return l
}

// SetNewNop replace Log with a logger that discards everything, for tests
func SetNewNop() {
	Log = &LogInfo{log: zap.NewNop()}
}

// getFileWriter 返回日志文件的 WriteSyncer
func getFileWriter(logFile string) zapcore.WriteSyncer {
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		panic(fmt.Sprintf("Failed to open or create log file: %v", err))
	}
	return zapcore.AddSync(file)
}

// SetDebugMode set the log debug mode
func (l *LogInfo) SetDebugMode(status bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugMode = status
}

// With returns a child logger carrying fields on every entry
func (l *LogInfo) With(fields ...zap.Field) *LogInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &LogInfo{log: l.log.With(fields...), debugMode: l.debugMode}
}

// Info 输出 INFO 级别日志
func (l *LogInfo) Info(msg string, fields ...zap.Field) {
	l.log.Info(msg, fields...)
}

// Error 输出 ERROR 级别日志
func (l *LogInfo) Error(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
}

// Errorf 输出 ERROR 级别日志
func (l *LogInfo) Errorf(msg string, err error, fields ...zap.Field) {
	l.log.Error(fmt.Sprintf("%s %v", msg, err), fields...)
}

// Debug 输出 DEBUG 级别日志
func (l *LogInfo) Debug(msg string, fields ...zap.Field) {
	l.log.Debug(msg, fields...)
}

// Warn 输出 WARN 级别日志
func (l *LogInfo) Warn(msg string, fields ...zap.Field) {
	l.log.Warn(msg, fields...)
}

// Sync 刷新日志缓冲区
func (l *LogInfo) Sync() {
	if err := l.log.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}

// Fatal 输出错误日志并退出程序
func (l *LogInfo) Fatal(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
	if err := l.log.Sync(); err != nil {
		os.Stderr.WriteString("Failed to sync logger: " + err.Error() + "\n")
	}
	os.Exit(1)
}
