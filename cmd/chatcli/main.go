// chatcli 是終端機版的聊天室參與者：以管理員 token 或存取金鑰加入聊天室，
// 每輸入一行就送出一則訊息。
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"securechat/backend/models"
	"securechat/backend/session"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "backend base URL")
	roomID := flag.String("room", "", "chat room id")
	key := flag.String("key", "", "client access key")
	token := flag.String("token", "", "admin session token")
	email := flag.String("email", "", "admin email (logs in when -token is empty)")
	password := flag.String("password", "", "admin password")
	bell := flag.Bool("bell", true, "ring the terminal bell on new activity")
	flag.Parse()

	if *roomID == "" {
		log.Fatal("-room is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *token == "" && *email != "" {
		t, err := login(ctx, *server, *email, *password)
		if err != nil {
			log.Fatalf("Admin login failed: %v", err)
		}
		*token = t
	}

	// 預期的角色；實際角色由伺服器授權決定，不一致時 Session 會結束
	role := models.RoleClient
	if *token != "" {
		role = models.RoleAdmin
	} else if *key == "" {
		log.Fatal("either -key or -token (or -email/-password) is required")
	}

	var sink session.NotificationSink = session.NopSink{}
	if *bell {
		sink = &session.BellSink{W: os.Stdout}
	}

	out := &printer{w: os.Stdout}
	sess, err := session.New(session.Config{
		RoomID:   *roomID,
		Role:     role,
		API:      &session.HTTPAPI{BaseURL: *server, AdminToken: *token, AccessKey: *key},
		Dial:     session.WebSocketDialer(wsURL(*server), nil),
		Sink:     sink,
		OnChange: out.render,
	})
	if err != nil {
		log.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				os.Exit(1)
			}
			return
		case line, ok := <-lines:
			if !ok {
				stop()
				<-done
				return
			}
			sess.SetInput(line)
			if err := sess.Send(ctx); err != nil && !errors.Is(err, models.ErrEmptyContent) {
				fmt.Fprintf(os.Stderr, "! %v\n", err)
			}
		}
	}
}

func wsURL(server string) string {
	server = strings.TrimRight(server, "/")
	switch {
	case strings.HasPrefix(server, "https://"):
		return "wss://" + strings.TrimPrefix(server, "https://") + "/realtime"
	case strings.HasPrefix(server, "http://"):
		return "ws://" + strings.TrimPrefix(server, "http://") + "/realtime"
	default:
		return server + "/realtime"
	}
}

func login(ctx context.Context, server, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/admin/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%d %s", resp.StatusCode, result.Error)
	}
	return result.Token, nil
}

// printer 只輸出與上次不同的部分：新訊息、狀態變化
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	printed int
	state   session.State
	status  string
	typing  bool
	online  bool
	sendErr string
	started bool
}

func (p *printer) render(snap session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || snap.State != p.state {
		fmt.Fprintf(p.w, "-- %s\n", snap.State)
	}
	if snap.Status != p.status && snap.Status != "" {
		fmt.Fprintf(p.w, "-- %s\n", snap.Status)
	}
	if p.started && snap.CounterpartOnline && !p.online {
		fmt.Fprintf(p.w, "-- %s joined\n", snap.Role.Counterpart())
	}
	if snap.CounterpartTyping != p.typing && snap.CounterpartTyping {
		fmt.Fprintf(p.w, "-- %s is typing...\n", snap.Role.Counterpart())
	}
	if snap.SendError != p.sendErr && snap.SendError != "" {
		fmt.Fprintf(p.w, "!! %s\n", snap.SendError)
	}
	if len(snap.Messages) < p.printed {
		p.printed = 0
	}
	for _, msg := range snap.Messages[p.printed:] {
		ts := time.UnixMilli(msg.Timestamp).Format("15:04")
		fmt.Fprintf(p.w, "[%s] %s: %s\n", ts, msg.Sender, msg.Content)
	}

	p.printed = len(snap.Messages)
	p.state = snap.State
	p.status = snap.Status
	p.typing = snap.CounterpartTyping
	p.online = snap.CounterpartOnline
	p.sendErr = snap.SendError
	p.started = true
}
