// Tally is a named-counter plugin. Counts persist in the host's memory
// store through the sovereign host functions, so they survive restarts
// and show up in recall like any other fact.
package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/extism/go-pdk"
)

//go:wasmimport sovereign memory_remember
func hostMemoryRemember(ptr uint64) uint64

//go:wasmimport sovereign memory_recall
func hostMemoryRecall(ptr uint64) uint64

type tallyInput struct {
	Action string `json:"action"`
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

type recallResult struct {
	Error   string `json:"error"`
	Entries []struct {
		Topic   string `json:"topic"`
		Content string `json:"content"`
	} `json:"entries"`
}

const topicPrefix = "tally:"

func hostCall(fn func(uint64) uint64, req any) []byte {
	data, _ := json.Marshal(req)
	mem := pdk.AllocateBytes(data)
	defer mem.Free()

	offset := fn(mem.Offset())
	if offset == 0 {
		return nil
	}
	out := pdk.FindMemory(offset)
	buf := make([]byte, out.Length())
	out.Load(buf)
	return buf
}

func loadCount(name string) (int, error) {
	raw := hostCall(hostMemoryRecall, map[string]string{"query": topicPrefix + name})
	if raw == nil {
		return 0, fmt.Errorf("memory host function unavailable")
	}
	var res recallResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return 0, err
	}
	if res.Error != "" {
		return 0, fmt.Errorf("%s", res.Error)
	}
	for _, e := range res.Entries {
		if e.Topic == topicPrefix+name {
			n, err := strconv.Atoi(strings.TrimSpace(e.Content))
			if err != nil {
				return 0, fmt.Errorf("corrupt count for %q: %s", name, e.Content)
			}
			return n, nil
		}
	}
	return 0, nil
}

func saveCount(name string, count int) error {
	raw := hostCall(hostMemoryRemember, map[string]string{
		"topic":   topicPrefix + name,
		"content": strconv.Itoa(count),
	})
	if raw == nil {
		return fmt.Errorf("memory host function unavailable")
	}
	var res struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return err
	}
	if res.Error != "" {
		return fmt.Errorf("%s", res.Error)
	}
	return nil
}

//export handle
func handle() int32 {
	input := pdk.Input()

	var req tallyInput
	if err := json.Unmarshal(input, &req); err != nil {
		return outputJSON(map[string]string{"error": "invalid input: " + err.Error()})
	}
	if req.Name == "" {
		return outputJSON(map[string]string{"error": "name is required"})
	}

	switch req.Action {
	case "increment", "":
		amount := req.Amount
		if amount == 0 {
			amount = 1
		}
		count, err := loadCount(req.Name)
		if err != nil {
			return outputJSON(map[string]string{"error": err.Error()})
		}
		count += amount
		if err := saveCount(req.Name, count); err != nil {
			return outputJSON(map[string]string{"error": err.Error()})
		}
		return outputJSON(map[string]any{"name": req.Name, "count": count})
	case "get":
		count, err := loadCount(req.Name)
		if err != nil {
			return outputJSON(map[string]string{"error": err.Error()})
		}
		return outputJSON(map[string]any{"name": req.Name, "count": count})
	case "reset":
		if err := saveCount(req.Name, 0); err != nil {
			return outputJSON(map[string]string{"error": err.Error()})
		}
		return outputJSON(map[string]any{"name": req.Name, "count": 0})
	default:
		return outputJSON(map[string]string{"error": fmt.Sprintf("unknown action: %s", req.Action)})
	}
}

func outputJSON(v any) int32 {
	data, err := json.Marshal(v)
	if err != nil {
		pdk.SetError(err)
		return 1
	}
	pdk.Output(data)
	return 0
}

func main() {}
