package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vogiaan1904/listenroom/internal/models"
	"github.com/vogiaan1904/listenroom/internal/reconciler"
	pkgGrpc "github.com/vogiaan1904/listenroom/pkg/grpc"
	pkgLog "github.com/vogiaan1904/listenroom/pkg/logger"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// wsSender serializes writes; gorilla allows one concurrent writer.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSender) Send(event string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(models.Message{Event: event, Data: data})
}

// logPlayer stands in for an audio device.
type logPlayer struct {
	ctx context.Context
	l   pkgLog.Logger
}

func (p logPlayer) Load(song models.Song, position float64, playing bool) {
	p.l.Infof(p.ctx, "player: load %s (%s) at %.1fs playing=%t", song.ID, song.Title, position, playing)
}
func (p logPlayer) Play(position float64) { p.l.Infof(p.ctx, "player: play at %.1fs", position) }
func (p logPlayer) Pause()                { p.l.Infof(p.ctx, "player: pause") }
func (p logPlayer) Seek(position float64) { p.l.Infof(p.ctx, "player: seek to %.1fs", position) }

func main() {
	server := flag.String("server", "http://localhost:8080", "room server base URL")
	grpcAddr := flag.String("grpc", "", "optional gRPC health address checked before connecting")
	token := flag.String("token", os.Getenv("LISTENROOM_TOKEN"), "bearer token")
	code := flag.String("code", "", "room join code")
	userID := flag.String("user", "", "user id carried by the token")
	flag.Parse()

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{Level: "info", Mode: "development", Encoding: "console"})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *code == "" || *token == "" {
		fmt.Fprintln(os.Stderr, "usage: client -code ABC123 -token <jwt> [-server URL] [-user id]")
		os.Exit(2)
	}

	if *grpcAddr != "" {
		if err := checkHealth(ctx, *grpcAddr, l); err != nil {
			l.Fatalf(ctx, "Server is not healthy: %v", err)
		}
	}

	wsURL, err := socketURL(*server, *token)
	if err != nil {
		l.Fatalf(ctx, "Invalid server URL: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect: %v", err)
	}
	defer conn.Close()

	sender := &wsSender{conn: conn}
	rec := reconciler.New(*userID, logPlayer{ctx: ctx, l: l}, reconciler.NewHTTPCatalog(*server, *token, nil), nil, l)
	controls := reconciler.NewControls(*userID, sender)

	if err := sender.Send(models.EventJoinRoom, map[string]string{"code": *code}); err != nil {
		l.Fatalf(ctx, "Failed to join: %v", err)
	}

	go readCommands(ctx, controls, sender, l)

	go func() {
		<-ctx.Done()
		_ = sender.Send(models.EventLeaveRoom, nil)
		conn.Close()
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil {
				l.Errorf(ctx, "Connection closed: %v", err)
			}
			break
		}
		if done := handleFrame(ctx, f, rec, controls, l); done {
			break
		}
	}

	rec.Wait()
}

func handleFrame(ctx context.Context, f frame, rec *reconciler.Reconciler, controls *reconciler.Controls, l pkgLog.Logger) bool {
	switch f.Event {
	case models.EventRoomJoined:
		var snap models.RoomSnapshot
		if err := json.Unmarshal(f.Data, &snap); err != nil {
			l.Warnf(ctx, "Bad room_joined: %v", err)
			return false
		}
		controls.UpdateRole(snap.Participants)
		rec.ApplySnapshot(snap)
		l.Infof(ctx, "Joined %q as host=%t", snap.Room.Name, controls.IsHost())
	case models.EventParticipantsUpdated:
		var p models.ParticipantsUpdated
		if err := json.Unmarshal(f.Data, &p); err == nil {
			controls.UpdateRole(p.Participants)
		}
	case models.EventQueueUpdated:
		var q models.QueueUpdated
		if err := json.Unmarshal(f.Data, &q); err == nil {
			rec.SetQueue(q.Queue)
		}
	case models.EventPlaybackSync:
		var ev models.SyncEvent
		if err := json.Unmarshal(f.Data, &ev); err == nil {
			rec.Handle(ev)
		}
	case models.EventRoomChat:
		var m models.ChatMessage
		if err := json.Unmarshal(f.Data, &m); err == nil {
			l.Infof(ctx, "[%s] %s: %s", m.Kind, m.User, m.Text)
		}
	case models.EventRoomError:
		l.Warnf(ctx, "Room error: %s", string(f.Data))
	case models.EventRoomClosed:
		l.Infof(ctx, "Room closed")
		return true
	}
	return false
}

// readCommands maps stdin lines onto transport controls.
func readCommands(ctx context.Context, controls *reconciler.Controls, sender *wsSender, l pkgLog.Logger) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "play":
			songID := ""
			if len(fields) > 1 {
				songID = fields[1]
			}
			err = controls.Play(songID, nil)
		case "next":
			if len(fields) < 2 {
				err = fmt.Errorf("usage: next <song_id>")
				break
			}
			err = controls.Next(fields[1])
		case "pause":
			err = controls.Pause()
		case "seek":
			if len(fields) < 2 {
				err = fmt.Errorf("usage: seek <seconds>")
				break
			}
			var pos float64
			pos, err = strconv.ParseFloat(fields[1], 64)
			if err == nil {
				err = controls.Seek(pos)
			}
		case "sync":
			err = sender.Send(models.EventRequestSync, nil)
		case "say":
			err = sender.Send(models.EventRoomChat, map[string]string{"text": strings.Join(fields[1:], " ")})
		default:
			err = fmt.Errorf("unknown command %q", fields[0])
		}
		if err != nil {
			l.Warnf(ctx, "%v", err)
		}
	}
}

func checkHealth(ctx context.Context, addr string, l pkgLog.Logger) error {
	client, cleanup, err := pkgGrpc.NewHealthClient(addr, l)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}

func socketURL(server, token string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}
