// Package codec 实现 ROM 文本使用的单字节码表。
//
// 码表由配置中的 (十六进制字节, 文本) 对构造, 每个字节对应一个 token,
// token 可以是一个字符, 也可以是两个字符的合并(例如 "e " 或 "th")。
// 编码时按最长匹配(最多两个字符)贪心合并, 每个字符串以 0x00 结尾。
package codec
