package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"chatgogo/minichat/internal/chatclient"
	"chatgogo/minichat/internal/config"
	"chatgogo/minichat/internal/localization"
	"chatgogo/minichat/internal/metrics"
	"chatgogo/minichat/internal/models"
	"chatgogo/minichat/internal/storage"
	"chatgogo/minichat/internal/transport"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const help = `commands:
  /connect [name]        connect as name (default: configured username)
  /disconnect            close the connection
  /login <user> <pass>   authenticate
  /register <user> <pass>
  /check <user>          ask whether a user exists
  /add <user>            add a contact
  /remove <user>         remove a contact
  /rename <user> <nick>  set a contact nickname
  /contacts              list contacts
  /private <user>        open the private room with user
  /leave                 go back to the public room
  /rooms                 list rooms
  /history               show the stored history of the current room
  /clear                 delete the history of the current room
  /image <file>          send an image
  /server <host> <port>  change the server address
  /interval <ms>         change the reconnect interval
  /state                 show the connection state
  /quit
anything else is sent to the current room`

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := storage.Open(storage.DriverSQLite, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := storage.MigrateClient(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	loc, err := localization.NewLocalizer()
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	var reg prometheus.Registerer
	if cfg.MetricsAddr != "" {
		r := prometheus.NewRegistry()
		reg = r
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(r, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("ERROR: metrics endpoint: %v", err)
			}
		}()
	}

	settings := config.NewSettings(cfg)
	svc, err := chatclient.NewService(chatclient.Options{
		Dialer:           transport.NewWebSocketDialer(),
		Store:            storage.NewStorageService(db),
		Settings:         settings,
		Localizer:        loc,
		Language:         cfg.Locale,
		Metrics:          metrics.NewClient(reg),
		QueueCapacity:    cfg.QueueCapacity,
		AuthTimeout:      cfg.AuthTimeout,
		UserCheckTimeout: cfg.UserCheckTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.Start(ctx)
	defer svc.Close()

	go printMessages(ctx, svc)
	go printStates(ctx, svc)

	if cfg.Username != "" {
		if err := svc.Connect(ctx, cfg.Username); err != nil {
			log.Printf("ERROR: connect: %v", err)
		}
		if cfg.Password != "" && waitConnected(ctx, svc, 10*time.Second) {
			report(svc.Login(ctx, cfg.Username, cfg.Password), "logged in")
		}
	}

	c := &cli{svc: svc, settings: settings, cfg: cfg}
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Println(help)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || !c.run(ctx, line) {
				_ = svc.Disconnect(context.Background())
				return
			}
		}
	}
}

type cli struct {
	svc      *chatclient.Service
	settings *config.Settings
	cfg      config.ClientConfig
}

// run executes one input line and reports whether to keep going.
func (c *cli) run(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, "/") {
		c.sendText(ctx, line)
		return true
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit":
		return false
	case "/connect":
		name := c.cfg.Username
		if len(args) > 0 {
			name = args[0]
		}
		if name == "" {
			fmt.Println("usage: /connect <name>")
			return true
		}
		report(c.svc.Connect(ctx, name), "connecting as "+name)
	case "/disconnect":
		report(c.svc.Disconnect(ctx), "disconnected")
	case "/login", "/register":
		if len(args) != 2 {
			fmt.Printf("usage: %s <user> <pass>\n", cmd)
			return true
		}
		if cmd == "/login" {
			report(c.svc.Login(ctx, args[0], args[1]), "logged in")
		} else {
			report(c.svc.Register(ctx, args[0], args[1]), "registered")
		}
	case "/check":
		if len(args) != 1 {
			fmt.Println("usage: /check <user>")
			return true
		}
		exists, err := c.svc.CheckUserExists(ctx, args[0])
		if report(err, "") {
			fmt.Printf("%s exists: %t\n", args[0], exists)
		}
	case "/add":
		if len(args) != 1 {
			fmt.Println("usage: /add <user>")
			return true
		}
		_, err := c.svc.AddContact(ctx, args[0])
		report(err, args[0]+" added")
	case "/remove":
		if len(args) != 1 {
			fmt.Println("usage: /remove <user>")
			return true
		}
		report(c.svc.RemoveContact(args[0]), args[0]+" removed")
	case "/rename":
		if len(args) < 2 {
			fmt.Println("usage: /rename <user> <nick>")
			return true
		}
		report(c.svc.RenameContact(args[0], strings.Join(args[1:], " ")), "renamed")
	case "/contacts":
		c.listContacts()
	case "/private":
		if len(args) != 1 {
			fmt.Println("usage: /private <user>")
			return true
		}
		room, err := c.svc.CreatePrivateRoom(args[0])
		if report(err, "") {
			report(c.svc.JoinRoom(room), "now in "+room.ID)
		}
	case "/leave":
		c.svc.LeaveRoom()
		fmt.Println("now in", models.PublicRoomID)
	case "/rooms":
		c.listRooms()
	case "/history":
		c.history()
	case "/clear":
		report(c.svc.ClearRoom(c.currentRoomID()), "history cleared")
	case "/image":
		if len(args) != 1 {
			fmt.Println("usage: /image <file>")
			return true
		}
		c.sendImage(ctx, args[0])
	case "/server":
		if len(args) != 2 {
			fmt.Println("usage: /server <host> <port>")
			return true
		}
		port, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Println("invalid port:", args[1])
			return true
		}
		report(c.settings.SetServer(args[0], port), "server set, used on the next connect")
	case "/interval":
		ms, err := strconv.Atoi(strings.Join(args, ""))
		if err != nil {
			fmt.Println("usage: /interval <ms>")
			return true
		}
		report(c.settings.SetReconnectInterval(time.Duration(ms)*time.Millisecond), "reconnect interval set")
	case "/state":
		fmt.Println(c.svc.State())
		if n, err := c.svc.PendingReconnects(ctx); err == nil && n > 0 {
			fmt.Println("reconnect pending")
		}
	default:
		fmt.Println(help)
	}
	return true
}

func (c *cli) currentRoomID() string {
	room, ok := c.svc.CurrentRoom()
	if !ok {
		return models.PublicRoomID
	}
	return room.ID
}

func (c *cli) sendText(ctx context.Context, text string) {
	_, err := c.svc.SendText(ctx, c.currentRoomID(), text)
	report(err, "")
}

func (c *cli) sendImage(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if !report(err, "") {
		return
	}
	_, err = c.svc.SendImage(ctx, c.currentRoomID(), data)
	report(err, "")
}

func (c *cli) listContacts() {
	contacts, err := c.svc.Contacts()
	if !report(err, "") {
		return
	}
	for _, ct := range contacts {
		name := ct.Username
		if ct.Nickname != "" {
			name = fmt.Sprintf("%s (%s)", ct.Nickname, ct.Username)
		}
		fmt.Printf("%-24s unread=%d  %s\n", name, ct.UnreadCount, ct.LastMessage)
	}
}

func (c *cli) listRooms() {
	rooms, err := c.svc.Rooms()
	if !report(err, "") {
		return
	}
	current := c.currentRoomID()
	for _, r := range rooms {
		marker := " "
		if r.ID == current {
			marker = "*"
		}
		fmt.Printf("%s %-8s %s\n", marker, r.Kind, r.ID)
	}
}

func (c *cli) history() {
	msgs, err := c.svc.MessagesAfter(c.currentRoomID(), 0)
	if !report(err, "") {
		return
	}
	for _, m := range msgs {
		printMessage(m)
	}
}

func waitConnected(ctx context.Context, svc *chatclient.Service, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for state := range svc.States(ctx) {
		if state.Kind == chatclient.StateConnected {
			return true
		}
	}
	return false
}

func printMessages(ctx context.Context, svc *chatclient.Service) {
	for msg := range svc.CurrentRoomMessages(ctx) {
		printMessage(msg)
	}
}

func printStates(ctx context.Context, svc *chatclient.Service) {
	for state := range svc.States(ctx) {
		fmt.Println("--", state)
	}
}

func printMessage(m models.Message) {
	ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
	content := m.Content
	if m.Type == models.TypeImage {
		content = fmt.Sprintf("[image, %d bytes base64]", len(m.Content))
	}
	status := ""
	if m.Status == models.StatusFailed {
		status = " (failed)"
	}
	fmt.Printf("[%s] %s: %s%s\n", ts, m.SenderID, content, status)
}

// report prints err, or ok when err is nil and ok is set. It returns err == nil.
func report(err error, ok string) bool {
	var authErr *chatclient.AuthError
	switch {
	case err == nil:
		if ok != "" {
			fmt.Println(ok)
		}
		return true
	case errors.As(err, &authErr):
		fmt.Println("server refused:", authErr.Response)
	default:
		fmt.Println("error:", err)
	}
	return false
}
