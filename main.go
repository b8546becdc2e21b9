package main

import "github.com/CraigKelly/gonuts/cmd"

// TODO: checkpointing for chains (so a run can be frozen after warmup and
//       continued) - which means the adapters and generator state all need
//       to be serialised

func main() {
	cmd.Execute()
}
