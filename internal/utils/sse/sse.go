package sse

import (
	"sync"
)

var sseChannels sync.Map // key: string session id, value: chan map[string]interface{}

func RegisterChannel(sessionID string, ch chan map[string]interface{}) {
	sseChannels.Store(sessionID, ch)
}

func UnregisterChannel(sessionID string) {
	sseChannels.Delete(sessionID)
}

func SendToSession(sessionID string, notification map[string]interface{}) bool {
	if chVal, ok := sseChannels.Load(sessionID); ok {
		if ch, ok := chVal.(chan map[string]interface{}); ok {
			select {
			case ch <- notification:
				return true
			default:
				return false
			}
		}
	}
	return false
}
