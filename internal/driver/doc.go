// Package driver spawns the external coding-agent CLI for one turn.
//
// The agent runs under a pseudo-terminal wrapper utility (`script` by
// default) so the CLI's terminal detection enables its streaming output.
// The wrapper appends the full transcript to the turn's log file while the
// driver streams the child's output to the controlling terminal, without
// buffering the run in memory; runs may emit large volumes over many
// minutes.
//
// The child runs in its own process group. On an interrupt or context
// cancellation the whole group is terminated (agent CLIs commonly fork
// helpers), partial log output is preserved, and the interruption surfaces
// as an error so the turn aborts.
//
// Exit-code propagation through the pseudo-terminal layer is not reliable
// on every platform: some mask non-zero exits as zero. The exit status is
// therefore diagnostic only; the session layer treats commit presence as
// the authoritative success signal.
package driver
