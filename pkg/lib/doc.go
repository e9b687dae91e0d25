// Package lib provides a Go SDK to translate PDF documents with a doctrans
// translation server.
//
// The SDK does the same as the doctrans CLI without shelling out to it: it
// analyzes documents, submits translations following their progress until
// they end, cancels them, downloads the translated files and keeps the local
// task history.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{ServerURL: "http://127.0.0.1:5000"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	res, err := client.Translate(ctx, lib.TranslateOpts{
//	    File:       "paper.pdf",
//	    TargetLang: "es",
//	    OnProgress: func(p lib.Progress) {
//	        fmt.Printf("%s %.0f%%\n", p.State, p.Percentage)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Task.State, res.OutputPath)
//
// # Progress
//
// [TranslateOpts].OnProgress receives a [Progress] every time the task
// progress changes. It's called from the task event loop so it must return
// quickly.
//
// A dropped progress stream is reopened automatically. When the server closes
// the stream without telling the task outcome, [TranslateResult].Detached is
// true and the task can be checked later with [Client.GetTask].
//
// # Cancellation
//
// Cancelling the context passed to [Client.Translate] cancels the task on the
// server, the returned result has the [TaskStateCancelled] state. Tasks
// followed by other processes can be cancelled with [Client.CancelTask].
//
// # Errors
//
// Errors can be checked with [errors.Is] against [ErrNotFound],
// [ErrAlreadyExists] and [ErrNotValid].
package lib
