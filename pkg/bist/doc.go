// Package bist trains and runs graph-based dependency parsers over CoNLL-U
// corpora.
//
// Quick start:
//
//	m, err := bist.New(bist.WithActivation("tanh"), bist.WithLSTMDims(125))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	if err := m.Fit(ctx, "train.conllu", bist.WithEpochs(10), bist.WithDev("dev.conllu")); err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Save("out/model"); err != nil { // also writes out/params.json
//	    log.Fatal(err)
//	}
//
// A Model is either configured or ready. Fit or Load make it ready; Predict,
// PredictConll and Save fail with ErrModelNotReady before that. The Model is
// safe for concurrent use.
package bist
