package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/vigil-labs/vigil-core/internal/audio"
	"github.com/vigil-labs/vigil-core/internal/protocol"
)

var version = "0.1.0-dev"

func main() {
	var (
		server  string
		session string
		wavPath string
		reset   bool
	)

	submitCmd := flag.NewFlagSet("submit", flag.ExitOnError)
	submitCmd.StringVar(&server, "server", nats.DefaultURL, "NATS server URL")
	submitCmd.StringVar(&session, "session", "default", "Session identifier")
	submitCmd.StringVar(&wavPath, "file", "", "Path to a 16-bit PCM WAV clip")
	submitCmd.BoolVar(&reset, "reset", false, "Send a session reset instead of a clip")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'submit' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "submit":
		submitCmd.Parse(os.Args[2:])
		if err := runSubmit(server, session, wavPath, reset); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func runSubmit(server, session, wavPath string, reset bool) error {
	conn, err := nats.Connect(server, nats.Name("vigil-clip"))
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer conn.Drain()

	if reset {
		payload, err := json.Marshal(protocol.SessionReset{
			SessionID: session,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := conn.Publish(protocol.SubjectSessionReset, payload); err != nil {
			return err
		}
		fmt.Printf("session %s reset\n", session)
		return conn.Flush()
	}

	if wavPath == "" {
		return fmt.Errorf("-file is required")
	}
	pcm, sampleRate, channels, err := audio.ReadWavFile(wavPath)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return fmt.Errorf("wav file contains no samples")
	}

	durationMS := len(pcm) / 2 / channels * 1000 / sampleRate
	clip := protocol.AudioClip{
		ClipID:     uuid.NewString(),
		SessionID:  session,
		SampleRate: sampleRate,
		Channels:   channels,
		DurationMS: durationMS,
		PCM:        pcm,
	}
	payload, err := json.Marshal(clip)
	if err != nil {
		return err
	}

	subject := protocol.SubjectClipSubmitPrefix + "." + session
	if err := conn.Publish(subject, payload); err != nil {
		return err
	}
	if err := conn.Flush(); err != nil {
		return err
	}
	fmt.Printf("submitted clip %s (%dms) to session %s\n", clip.ClipID, durationMS, session)
	return nil
}
