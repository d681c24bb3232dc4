package service

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestCheckpointViewHidesCorrectAnswer(t *testing.T) {
	cp := testCheckpoint(1)

	payload := CheckpointStartedPayload{
		Checkpoint: newCheckpointView(cp),
		Deadline:   time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC).UnixMilli(),
		Remaining:  60,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	body := string(b)

	// 下发给学生的任何载荷都不能携带正确答案
	if strings.Contains(body, "correctAnswer") {
		t.Errorf("学生视图泄露了正确答案: %s", body)
	}
	for _, want := range []string{"question", "options", "timeLimit", "deadline"} {
		if !strings.Contains(body, want) {
			t.Errorf("学生视图缺少字段 %q: %s", want, body)
		}
	}

	// 完整模型含答案，只允许经mustOwn校验的接口返回
	full, _ := json.Marshal(cp)
	if !strings.Contains(string(full), "correctAnswer") {
		t.Error("完整模型应包含correctAnswer字段")
	}
}

func TestClientSendAfterClose(t *testing.T) {
	c := &Client{Send: make(chan []byte, 2)}

	if !c.trySend([]byte("a")) {
		t.Fatal("trySend() before close = false, want true")
	}
	c.closeSend()
	c.closeSend() // 幂等

	// 关闭后的发送直接丢弃，不触发panic
	if c.trySend([]byte("b")) {
		t.Error("trySend() after close = true, want false")
	}

	// 关闭前已入队的消息仍可被writePump读出
	msg, ok := <-c.Send
	if !ok || string(msg) != "a" {
		t.Errorf("queued message = %q, ok = %v, want \"a\", true", msg, ok)
	}
	if _, ok := <-c.Send; ok {
		t.Error("channel should be closed after draining")
	}
}

func TestPushToLocalRoom(t *testing.T) {
	client := &Client{Send: make(chan []byte, 4), UserID: 7, SessionID: 1}
	h := &LiveHub{
		rooms: map[uint]*liveRoom{
			1: {
				clients: map[uint]*Client{7: client},
				state:   newRoomState(),
			},
		},
	}

	payload := []byte(`{"type":"session-ended"}`)
	h.pushToLocalRoom(1, payload)

	select {
	case got := <-client.Send:
		if string(got) != string(payload) {
			t.Errorf("delivered = %s, want %s", got, payload)
		}
	default:
		t.Fatal("本地成员未收到广播")
	}

	// 成员断开后重复广播不会panic
	client.closeSend()
	h.pushToLocalRoom(1, payload)

	// 不存在的房间是no-op
	h.pushToLocalRoom(99, payload)
}
