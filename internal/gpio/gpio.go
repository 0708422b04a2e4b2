// Package gpio 提供数字输入线路的抽象与实现。
// 触发监视器只依赖本包的接口，真实硬件走 sysfs 实现，测试走内存实现。
package gpio

// Line 一条已打开的数字输入线路。
type Line interface {
	// Read 读取当前电平，true 表示高电平
	Read() (bool, error)
	// Close 释放线路句柄
	Close() error
}

// Driver 数字输入驱动。
// Open 失败或后续 Read 失败都视为驱动故障，由调用方退避重试。
type Driver interface {
	// Open 按引脚编号打开一条输入线路
	Open(pin int) (Line, error)
}
