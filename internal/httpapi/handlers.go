package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"

	"go.uber.org/zap"

	"github.com/typeloop/typerace-backend/internal/registry"
	"github.com/typeloop/typerace-backend/internal/room"
)

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createRoomRequest struct {
	ComputerMode bool   `json:"isComputerMode"`
	NumBots      int    `json:"numBots"`
	Difficulty   string `json:"difficulty"`
}

// CreateRoom provisions a room ahead of the first websocket join and
// returns its collision-checked code.
func CreateRoom(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req) // body is optional
		}

		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			reply := make(chan *room.Room, 1)
			reg.Inbox() <- registry.Get{Key: c, Reply: reply}
			if <-reply == nil {
				code = c
				break
			}
			log.Warn("collision on room code, regenerating", zap.String("code", c))
		}

		reply := make(chan *room.Room, 1)
		reg.Inbox() <- registry.Ensure{
			Key: code,
			Config: registry.Config{
				ComputerMode: req.ComputerMode,
				NumBots:      req.NumBots,
				Difficulty:   req.Difficulty,
			},
			Reply: reply,
		}
		if <-reply == nil {
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
