// Command digitgrad trains and inspects a feed-forward MNIST classifier.
//
//	digitgrad train -config run.yaml -epochs 5
//	digitgrad eval -checkpoint model.dgrd -data-dir data/mnist
//	digitgrad nllcheck
//	digitgrad autograd
package main

import (
	"fmt"
	"log"
	"os"
)

const version = "v0.1.0"

type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var commands = []command{
	{"train", "train a classifier and optionally save a checkpoint", runTrain},
	{"eval", "evaluate a checkpoint and show class probabilities", runEval},
	{"nllcheck", "compare the hand-written NLL with the library loss", runNLLCheck},
	{"autograd", "show gradients of mean(x*x) computed by the tape", runAutograd},
	{"export", "convert a checkpoint to SafeTensors", runExport},
	{"info", "print CPU features and verify dataset files", runInfo},
	{"version", "print the version", func([]string) error {
		fmt.Printf("digitgrad %s\n", version)
		return nil
	}},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	for _, c := range commands {
		if c.name == name {
			if err := c.run(os.Args[2:]); err != nil {
				log.Fatalf("%s: %v", name, err)
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, "digitgrad %s\n\nCommands:\n", version)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.summary)
	}
}
