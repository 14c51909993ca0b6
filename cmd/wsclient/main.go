// Command wsclient is a scripted test client for the copilot websocket.
// It starts a session, plays back a short rep/physician exchange, and
// prints every alert the service sends back.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

type outbound struct {
	Type       string  `json:"type"`
	Speaker    string  `json:"speaker,omitempty"`
	Text       string  `json:"text,omitempty"`
	Timestamp  float64 `json:"timestamp,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

var script = []outbound{
	{Type: "transcript", Speaker: "rep", Text: "Good morning doctor, thanks for making time today.", Confidence: 0.97},
	{Type: "transcript", Speaker: "counterpart", Text: "I have five minutes. What do you have?", Confidence: 0.95},
	{Type: "transcript", Speaker: "rep", Text: "In clinical trials, 78% of patients achieved a 1.5% reduction in A1C.", Confidence: 0.96},
	{Type: "transcript", Speaker: "counterpart", Text: "And off label? I hear it helps with weight.", Confidence: 0.94},
	{Type: "transcript", Speaker: "rep", Text: "This drug can help with weight loss in your patients.", Confidence: 0.93},
	{Type: "transcript", Speaker: "rep", Text: "Honestly it is 100% effective and always works.", Confidence: 0.92},
	{Type: "stop"},
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/v1/copilot/ws", "copilot websocket URL")
	delay := flag.Duration("delay", 500*time.Millisecond, "delay between segments")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var pretty map[string]any
			if err := json.Unmarshal(data, &pretty); err != nil {
				log.Printf("recv: %s", data)
				continue
			}
			log.Printf("recv: type=%v title=%v severity=%v", pretty["type"], pretty["title"], pretty["severity"])
		}
	}()

	for _, msg := range script {
		msg.Timestamp = float64(time.Now().UnixMilli()) / 1000.0
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatalf("send: %v", err)
		}
		if msg.Type == "transcript" {
			log.Printf("sent: %s: %s", msg.Speaker, msg.Text)
		}
		time.Sleep(*delay)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
