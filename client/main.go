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
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeLogin         = 101
	MsgTypeRollDice      = 102
	MsgTypeSetDifficulty = 103
	MsgTypeAnswer        = 104
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:5000", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

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
		}
	}()

	log.Println("Client started. Commands:")
	log.Println("  login <color> <category> <name> <lang>")
	log.Println("  roll")
	log.Println("  diff <1|3|5>")
	log.Println("  answer <answerId>")

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
			fields := strings.Fields(text)
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case "login":
				if len(fields) < 5 {
					log.Println("usage: login <color> <category> <name> <lang>")
					continue
				}
				payload, _ := json.Marshal(map[string]string{
					"color":    fields[1],
					"category": fields[2],
					"name":     fields[3],
					"lang":     fields[4],
				})
				if err := send(c, MsgTypeLogin, payload); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: login")
			case "roll":
				if err := send(c, MsgTypeRollDice, []byte{}); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: roll")
			case "diff":
				if len(fields) < 2 {
					log.Println("usage: diff <1|3|5>")
					continue
				}
				value, err := strconv.Atoi(fields[1])
				if err != nil {
					log.Println("difficulty must be a number")
					continue
				}
				payload, _ := json.Marshal(map[string]int{"difficulty": value})
				if err := send(c, MsgTypeSetDifficulty, payload); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: difficulty")
			case "answer":
				if len(fields) < 2 {
					log.Println("usage: answer <answerId>")
					continue
				}
				id, err := strconv.ParseInt(fields[1], 10, 64)
				if err != nil {
					log.Println("answerId must be a number")
					continue
				}
				payload, _ := json.Marshal(map[string]int64{"answerId": id})
				if err := send(c, MsgTypeAnswer, payload); err != nil {
					log.Println("Write error:", err)
					return
				}
				log.Println("-> SENT: answer")
			default:
				log.Printf("unknown command %q", fields[0])
			}
		}
	}
}
