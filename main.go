// main.go - Main entry point for the VoltRack modular synthesizer

package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var logger = slog.Default()

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func boilerPlate() {
	fmt.Println("VoltRack - a software modular synthesizer")
	fmt.Println("Patch cables, voltages and one rack of modules.")
}

func listKinds(reg *Registry) {
	for _, kt := range reg.Kinds() {
		k, ok := reg.Lookup(kt)
		if !ok {
			continue
		}
		var ins, outs []string
		for _, p := range k.Inputs {
			ins = append(ins, p.Name)
		}
		for _, p := range k.Outputs {
			outs = append(outs, p.Name)
		}
		fmt.Printf("%-12s %-22s in:[%s] out:[%s]\n",
			k.Type, k.Name, strings.Join(ins, " "), strings.Join(outs, " "))
	}
}

func main() {
	var (
		backendName string
		midiPort    string
		savePath    string
		channel     int
		sampleRate  int
		blockSize   int
		keyboard    bool
		list        bool
		debug       bool
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&backendName, "backend", "oto", "Audio backend: oto or portaudio")
	flagSet.StringVar(&midiPort, "midi", "", "Hardware MIDI input port name (substring match)")
	flagSet.StringVar(&savePath, "save", "", "Write the loaded patch back out as JSON and exit")
	flagSet.IntVar(&channel, "channel", 0, "MIDI channel for the terminal keyboard")
	flagSet.IntVar(&sampleRate, "rate", DEFAULT_SAMPLE_RATE, "Sample rate in Hz")
	flagSet.IntVar(&blockSize, "block", DEFAULT_BLOCK_SIZE, "Block size in samples")
	flagSet.BoolVar(&keyboard, "keyboard", false, "Play notes from the terminal keyboard")
	flagSet.BoolVar(&list, "list", false, "List available module types and exit")
	flagSet.BoolVar(&debug, "debug", false, "Enable debug logging")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: voltrack [options] patchfile(.json|.lua)")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	initLogger(debug)

	registry := NewRegistry()
	if err := RegisterBuiltins(registry); err != nil {
		fmt.Printf("Error registering modules: %v\n", err)
		os.Exit(1)
	}

	if list {
		listKinds(registry)
		os.Exit(0)
	}

	patchFile := flagSet.Arg(0)
	if patchFile == "" {
		flagSet.Usage()
		os.Exit(1)
	}

	boilerPlate()

	var (
		patch *Patch
		err   error
	)
	if IsLuaPatch(patchFile) {
		patch, err = LoadPatchLua(patchFile)
	} else {
		patch, err = LoadPatchFile(patchFile)
	}
	if err != nil {
		fmt.Printf("Error loading patch: %v\n", err)
		os.Exit(1)
	}

	queue := NewMIDIQueue()
	rack := NewRack(registry, queue, sampleRate, blockSize)
	if skipped := patch.Apply(rack); skipped > 0 {
		logger.Warn("patch loaded with skipped elements", "patch", patch.Name, "skipped", skipped)
	}

	if savePath != "" {
		if err := SavePatchFile(savePath, SnapshotPatch(patch.Name, rack)); err != nil {
			fmt.Printf("Error saving patch: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved %s\n", savePath)
		os.Exit(0)
	}

	backend := AUDIO_BACKEND_OTO
	switch backendName {
	case "oto":
	case "portaudio":
		backend = AUDIO_BACKEND_PORTAUDIO
	default:
		fmt.Printf("Unknown backend %q\n", backendName)
		os.Exit(1)
	}
	audio, err := NewAudioOutput(backend, rack)
	if err != nil {
		fmt.Printf("Failed to initialize audio: %v\n", err)
		os.Exit(1)
	}
	defer audio.Close()

	if midiPort != "" || !keyboard {
		if in, err := OpenMIDIInput(queue, midiPort); err != nil {
			// Hardware MIDI is optional; the patch can still free-run.
			logger.Info("midi input unavailable", "err", err)
		} else {
			defer in.Close()
		}
	}

	var keys *KeyboardSource
	if keyboard {
		keys = NewKeyboardSource(queue, channel)
		keys.Start()
		defer keys.Stop()
		fmt.Println("Keys: a..k play notes, z/x shift octave, Esc quits.")
	}

	audio.Start()
	logger.Info("running", "patch", patch.Name, "rate", sampleRate, "block", blockSize,
		"modules", len(rack.Modules()), "cables", len(rack.Cables()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	audio.Stop()
	fmt.Println("\nBye.")
}
