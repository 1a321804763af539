package internal

import (
	"context"
	"net/http"
	"time"

	"github.com/internetbuilder/hive/libraries/chain"
	"github.com/internetbuilder/hive/libraries/logger"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type wsHeadMessage struct {
	Type         string `json:"type"`
	HeadBlockNum uint32 `json:"head_block_num"`
	HeadBlockID  string `json:"head_block_id,omitempty"`
	BlockTime    uint32 `json:"block_time,omitempty"`
}

// handleStream upgrades to a websocket and pushes a message whenever
// the head advances, as observed by polling the head cache. The cache
// moves only with appends made through the same BlockLog; blocks that
// another process appends to the files are not observed.
func (a *apiServer) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Printf("stream", "websocket accept failed: %v", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "")

	logger.Printf("stream", "Stream client connected from %s", r.RemoteAddr)

	ctx := r.Context()
	ticker := time.NewTicker(a.cfg.StreamInterval)
	defer ticker.Stop()

	var lastSent uint32
	for {
		select {
		case <-ctx.Done():
			logger.Printf("stream", "Stream client %s disconnected", r.RemoteAddr)
			return
		case <-ticker.C:
			head := a.log.Head()
			if head == nil || head.BlockNum() == lastSent {
				continue
			}

			msg := wsHeadMessage{
				Type:         "head",
				HeadBlockNum: head.BlockNum(),
			}
			if sb, ok := head.(*chain.SignedBlock); ok {
				msg.HeadBlockID = sb.ID().String()
				msg.BlockTime = sb.Timestamp
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, ws, msg)
			cancel()
			if err != nil {
				logger.Printf("stream", "Stream client %s write failed: %v", r.RemoteAddr, err)
				return
			}
			lastSent = head.BlockNum()
		}
	}
}
