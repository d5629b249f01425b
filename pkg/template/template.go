// Package template supplies the run script written into the training root
// before every run. The script body is fixed; per-task context comes from
// the working directory it runs in.
package template

// ScriptName is the file the run script is materialized as, locally and
// remotely.
const ScriptName = "train.py"

// LogName is the file training output is redirected to inside the run
// directory.
const LogName = "training.log"

// Provider returns the script body to write verbatim.
type Provider interface {
	Script() string
}

type fixedProvider struct{}

// NewProvider returns the default fixed-script provider.
func NewProvider() Provider {
	return fixedProvider{}
}

func (fixedProvider) Script() string {
	return trainScript
}

const trainScript = `#!/usr/bin/env python3
"""Training entrypoint generated by trainhub."""

import argparse


def train():
    print("training started")
    from ultralytics import YOLO

    model = YOLO("yolov8n.pt")
    model.train(data="data.yaml", epochs=100)
    print("training finished")


def main():
    parser = argparse.ArgumentParser(description="training entrypoint")
    parser.add_argument("action", choices=["train"], help="action to run")
    args = parser.parse_args()

    if args.action == "train":
        train()


if __name__ == "__main__":
    main()
`
