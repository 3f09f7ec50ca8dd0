//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	// Export functions to JavaScript
	js.Global().Set("HypergrepNewScanner", js.FuncOf(newScanner))
	js.Global().Set("HypergrepGrep", js.FuncOf(grep))
	js.Global().Set("HypergrepGrepBatch", js.FuncOf(grepBatch))
	js.Global().Set("HypergrepCheck", js.FuncOf(check))
	js.Global().Set("HypergrepCloseScanner", js.FuncOf(closeScanner))

	// Keep WASM running
	<-make(chan struct{})
}
