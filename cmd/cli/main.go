package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Runs an on-demand check of one target through the public API.
// Usage: cli [target-id]   (prompts when no id is given)
func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	key := os.Getenv("API_KEY")
	if key == "" {
		fmt.Println("API_KEY is empty; set a public or admin key.")
		os.Exit(1)
	}

	var id string
	if len(os.Args) > 1 {
		id = os.Args[1]
	} else {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Enter a target id to check: ")
		id, _ = reader.ReadString('\n')
	}
	id = strings.TrimSpace(id)
	if id == "" {
		fmt.Println("Target id required.")
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]string{"target_id": id})
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(api, "/")+"/api/check-servers", bytes.NewReader(body))
	if err != nil {
		fmt.Println("Bad API_BASE:", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", key)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Println("API returned status:", resp.Status, strings.TrimSpace(string(raw)))
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		fmt.Println(pretty.String())
		return
	}
	fmt.Println(string(raw))
}
