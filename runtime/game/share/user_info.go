package share

// UserInfo 和游戏逻辑隔离的用户信息，由鉴权得到，连接期间不变
type UserInfo struct {
	UserID      string
	DisplayName string
	ConnID      string // 当前连接，重连后变化
}

// NewUserInfo 展示名为空时退回用户 ID
func NewUserInfo(userID, displayName, connID string) *UserInfo {
	if displayName == "" {
		displayName = userID
	}
	return &UserInfo{
		UserID:      userID,
		DisplayName: displayName,
		ConnID:      connID,
	}
}
