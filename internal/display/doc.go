// Package display renders chainminer output for the terminal: per-file
// progress, warnings and result tables.
//
// Colors are used only when the writer is a terminal (see UseColor), so the
// same calls produce clean text when output is piped or captured in tests.
//
//	progress := display.NewProgressIndicator(os.Stdout, len(files), "event log")
//	progress.Start("Mining")
//	for _, f := range files {
//	    progress.Step(f)
//	}
//	progress.Complete("Mined")
//
// Tables are built with lipgloss:
//
//	fmt.Println(display.GraphTable(graph, display.UseColor(os.Stdout)))
package display
