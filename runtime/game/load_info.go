package game

// LoadInfo 负载信息
// 用于计算节点的综合负载评分
type LoadInfo struct {
	GameCount   int     // 当前对局数（房间数）
	PlayerCount int     // 当前座位数
	Connected   int     // 在线连接数
	CPUUsage    float64 // CPU 使用率（0-100）
	MemUsage    float64 // 内存使用率（0-100）
}

// CalculateLoad 计算综合负载评分
// 权重：CPU 30%、内存 20%、对局数 25%、连接数 25%
// 返回值越小表示负载越低
func (li *LoadInfo) CalculateLoad() float64 {
	// 对局数按 200、连接数按 1000 归一化
	normalizedGameCount := float64(li.GameCount) / 200.0
	if normalizedGameCount > 1.0 {
		normalizedGameCount = 1.0
	}

	normalizedConnected := float64(li.Connected) / 1000.0
	if normalizedConnected > 1.0 {
		normalizedConnected = 1.0
	}

	return li.CPUUsage*0.3 + li.MemUsage*0.2 + normalizedGameCount*100*0.25 + normalizedConnected*100*0.25
}
