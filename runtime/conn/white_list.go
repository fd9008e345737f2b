package conn

import (
	"strings"
)

// parseWSPath 解析 /ws/{matchId} 和测试白名单路径 /ws/{matchId}/test={userID}
func parseWSPath(path string) (matchID, testUserID string) {
	trimmed := strings.Trim(path, "/")
	segments := strings.Split(trimmed, "/")
	if len(segments) < 2 || segments[0] != "ws" {
		return "", ""
	}
	matchID = segments[1]
	for _, segment := range segments[2:] {
		if strings.HasPrefix(segment, "test=") {
			testUserID = strings.TrimPrefix(segment, "test=")
		}
	}
	return matchID, testUserID
}
