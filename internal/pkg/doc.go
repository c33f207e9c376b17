/*
Package pkg 包含了项目的公共类部分。具体地：

config.go -- 统一定义了所有配置的加载项，便于使用

offset.go -- 偏移量文本的规范化与字段偏移表

logger.go -- 配置logger项

context.go -- 配置与 logger 在 context 上的挂载

metrics.go -- 解码计数指标
*/
package pkg
