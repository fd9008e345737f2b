package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch 监听配置文件变化，只把允许热更新的字段（日志级别）回调出去
// 其余字段需要重启节点才生效
func Watch(v *viper.Viper, onLogLevel func(level string)) {
	if v == nil || onLogLevel == nil {
		return
	}
	v.OnConfigChange(func(in fsnotify.Event) {
		if !in.Has(fsnotify.Write) && !in.Has(fsnotify.Create) {
			return
		}
		level := v.GetString("log.level")
		if level == "" || level == Conf.Level {
			return
		}
		Conf.Level = level
		onLogLevel(level)
	})
	v.WatchConfig()
}
