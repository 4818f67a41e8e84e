package session

import (
	"sync"
	"time"
)

// DefaultTypingIdle 停止輸入多久後送出 typing-stop
const DefaultTypingIdle = 2 * time.Second

// typingDebouncer 偵測 idle -> typing 的邊緣。
// 每次按鍵都會以新的計時器取代舊的，計時器觸發時只送出一次 stop。
type typingDebouncer struct {
	mu     sync.Mutex
	idle   time.Duration
	emit   func(start bool)
	active bool
	gen    uint64
	timer  *time.Timer
}

func newTypingDebouncer(idle time.Duration, emit func(start bool)) *typingDebouncer {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &typingDebouncer{idle: idle, emit: emit}
}

// Keystroke 記錄一次輸入
func (d *typingDebouncer) Keystroke() {
	d.mu.Lock()
	start := !d.active
	d.active = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, func() { d.fire(gen) })
	d.mu.Unlock()

	if start {
		d.emit(true)
	}
}

func (d *typingDebouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.timer = nil
	d.mu.Unlock()

	d.emit(false)
}

// Stop 立即結束輸入狀態（例如訊息已送出），回傳是否送出了 stop
func (d *typingDebouncer) Stop() bool {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return false
	}
	d.active = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.emit(false)
	return true
}

// Cancel 取消計時器但不送出任何事件，用於 Session 結束
func (d *typingDebouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
