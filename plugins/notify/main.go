// Package main provides a desktop notification plugin. It announces
// advisory changes through osascript on macOS and notify-send elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event    string `json:"event"`
	Advisory string `json:"advisory"`
	Previous string `json:"previous"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != "advisory_changed" {
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	msg := message(req)
	if err := notify("SignalWatch", msg); err != nil {
		writeErrorResponse(fmt.Sprintf("notify failed: %v", err))
		return
	}

	data, _ := json.Marshal(map[string]string{"message": msg})
	writeResponse(Response{Success: true, Data: data})
}

func message(req Request) string {
	if req.Previous == "" || req.Previous == "NO_DATA" {
		return fmt.Sprintf("Advisory: %s", req.Advisory)
	}
	return fmt.Sprintf("Advisory: %s (was %s)", req.Advisory, req.Previous)
}

// notify shows a desktop notification.
func notify(title, body string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = exec.Command("osascript", "-e", script)
	default:
		cmd = exec.Command("notify-send", title, body)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func writeErrorResponse(errMsg string) {
	writeResponse(Response{
		Success: false,
		Error:   errMsg,
	})
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
