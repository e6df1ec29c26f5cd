package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeCreateGame  = 101
	MsgTypeJoinGame    = 102
	MsgTypeStartGame   = 103
	MsgTypeLeaveGame   = 104
	MsgTypeRestartGame = 105
	MsgTypeEndGame     = 106

	MsgTypeRound1Declaration = 201
	MsgTypeRound2Ranking     = 202
	MsgTypeRound3Guess       = 203

	MsgTypeGameCreated = 301
)

// identity 由服务端推送的 gameCreated 回填，后续命令都带上它
type identity struct {
	mu       sync.Mutex
	gameID   string
	playerID string
}

func (id *identity) set(gameID, playerID string) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.gameID = gameID
	id.playerID = playerID
}

func (id *identity) get() (string, string) {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.gameID, id.playerID
}

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func sendJSON(c *websocket.Conn, msgID uint16, payload interface{}) {
	data, _ := json.Marshal(payload)
	if err := send(c, msgID, data); err != nil {
		log.Println("Write error:", err)
	}
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	var me identity

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))

			if msgID == MsgTypeGameCreated {
				var payload struct {
					Game struct {
						ID string `json:"id"`
					} `json:"game"`
					PlayerID string `json:"playerId"`
				}
				if err := json.Unmarshal(data, &payload); err == nil {
					me.set(payload.Game.ID, payload.PlayerID)
					log.Printf("Playing as %s in game %s", payload.PlayerID, payload.Game.ID)
				}
			}
		}
	}()

	log.Println("Commands: create <name>... | join <gameId> <name> | start | pair | nopair | rank <n> | guess <rank> | leave | restart | end")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}
			gameID, playerID := me.get()

			switch fields[0] {
			case "create":
				sendJSON(c, MsgTypeCreateGame, map[string]interface{}{"playerNames": fields[1:]})
			case "join":
				if len(fields) < 3 {
					log.Println("Usage: join <gameId> <name>")
					continue
				}
				sendJSON(c, MsgTypeJoinGame, map[string]string{"gameId": fields[1], "playerName": fields[2]})
			case "start":
				sendJSON(c, MsgTypeStartGame, map[string]string{"gameId": gameID})
			case "pair", "nopair":
				sendJSON(c, MsgTypeRound1Declaration, map[string]interface{}{
					"gameId": gameID, "playerId": playerID, "seesPair": fields[0] == "pair",
				})
			case "rank":
				if len(fields) < 2 {
					log.Println("Usage: rank <n>")
					continue
				}
				n, err := strconv.Atoi(fields[1])
				if err != nil {
					log.Println("rank must be a number")
					continue
				}
				sendJSON(c, MsgTypeRound2Ranking, map[string]interface{}{
					"gameId": gameID, "playerId": playerID, "perceivedRank": n,
				})
			case "guess":
				if len(fields) < 2 {
					log.Println("Usage: guess <rank>")
					continue
				}
				sendJSON(c, MsgTypeRound3Guess, map[string]string{
					"gameId": gameID, "playerId": playerID, "guessedRank": fields[1],
				})
			case "leave":
				sendJSON(c, MsgTypeLeaveGame, map[string]string{"gameId": gameID, "playerId": playerID})
			case "restart":
				sendJSON(c, MsgTypeRestartGame, map[string]string{"gameId": gameID})
			case "end":
				sendJSON(c, MsgTypeEndGame, map[string]string{"gameId": gameID})
			default:
				log.Printf("Unknown command: %s", fields[0])
			}
		}
	}
}
