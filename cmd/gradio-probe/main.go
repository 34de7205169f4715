package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/OnlyFor/gradio"
)

func main() {
	root := flag.String("url", "http://127.0.0.1:7860", "root URL of the app to call")
	endpoint := flag.String("endpoint", "/predict", "endpoint name or numeric fn_index")
	token := flag.String("token", "", "auth token (if the app requires it)")
	argsJSON := flag.String("args", "[]", "JSON array of positional arguments")
	timeout := flag.Duration("timeout", 60*time.Second, "overall call timeout")
	flag.Parse()

	var args []any
	if err := json.Unmarshal([]byte(*argsJSON), &args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid -args: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	opts := gradio.ClientOptions{Token: *token}
	c, err := gradio.New(ctx, strings.TrimSuffix(*root, "/"), opts, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	h, err := c.Submit(ctx, *endpoint, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	h.On(gradio.EventStatus, func(ev gradio.Event) {
		st := ev.Status
		fmt.Fprintf(os.Stderr, "status: %s queue=%v eta=%.2f\n", st.Stage, st.Queue, st.Eta)
		if st.Stage == gradio.StageComplete || st.Stage == gradio.StageError {
			close(done)
		}
	})
	h.On(gradio.EventData, func(ev gradio.Event) {
		out, _ := json.Marshal(ev.Data.Data)
		fmt.Println(string(out))
	})
	h.On(gradio.EventLog, func(ev gradio.Event) {
		fmt.Fprintf(os.Stderr, "log[%s]: %s\n", ev.Log.Level, ev.Log.Log)
	})

	select {
	case <-done:
	case <-ctx.Done():
		h.Cancel(ctx)
		fmt.Fprintln(os.Stderr, "Error: timed out")
		os.Exit(1)
	}
}
