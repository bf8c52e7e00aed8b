package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tilecraft.dev/internal/protocol"
	"tilecraft.dev/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, obs := s.handshake(conn)
		if sessionID == "" {
			return
		}
		defer s.world.Detach(sessionID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Acks go out on the same writer goroutine as OBS frames; the
		// gorilla conn allows only one concurrent writer.
		acks := make(chan protocol.AckMsg, 16)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-obs:
					if !ok {
						return
					}
					if err := writeMessage(conn, b); err != nil {
						cancel()
						return
					}
				case a := <-acks:
					if err := writeJSON(conn, a); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				select {
				case acks <- protocol.AckMsg{
					Type:            protocol.TypeAck,
					ProtocolVersion: protocol.Version,
					AckFor:          act.ID,
					Accepted:        false,
					Code:            protocol.ErrProtoBadRequest,
					Message:         "bad protocol_version",
				}:
				default:
				}
				continue
			}
			s.world.Submit(world.ActionEnvelope{SessionID: sessionID, Act: act, Reply: acks})
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, obs chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return "", nil
	}

	sessionID = uuid.NewString()
	obs = make(chan []byte, 8)

	cats := s.world.Catalogs()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldID:         s.world.ID(),
		WorldParams:     protocol.WorldParams{TickRateHz: s.world.TickRateHz()},
		Catalogs: protocol.CatalogDigests{
			ItemPalette: protocol.DigestRef{
				Digest: cats.Items.PaletteDigest,
				Count:  len(cats.Items.Palette),
			},
			TilesDigest:   cats.Tiles.Digest,
			PuzzlesDigest: cats.Puzzles.Digest,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}

	s.world.Attach(world.AttachRequest{SessionID: sessionID, Out: obs})
	if s.log != nil {
		s.log.Printf("session %s: %q connected", sessionID, hello.ClientName)
	}
	return sessionID, obs
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second),
	)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeMessage(conn, b)
}

func writeMessage(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
