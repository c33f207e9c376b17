// Package rom 按配置中的字段偏移表从 ROM 镜像中读取字符串与定长记录。
//
// 镜像在 Reader 的整个生命周期内只读, 所有返回的记录都是拷贝。
// 字段不在偏移表中不是错误, 各读取方法用 ok=false 表示该字段不存在。
package rom
