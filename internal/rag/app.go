package rag

import (
	"context"

	"github.com/itissonu/genaiquery/pkg/app"
)

// NewApp creates the retrieval service application.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Project-scoped document retrieval service"),
		app.WithDescription(`genaiquery ingests project documents, splits them into overlapping
chunks, embeds them with a configurable provider chain, and serves
similarity search over a pluggable vector store.`),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run 返回应用主函数。
func run(opts *Options) app.RunFunc {
	return func() error {
		ctx := context.Background()

		server, err := opts.NewServer(ctx)
		if err != nil {
			return err
		}
		return server.Run(ctx)
	}
}
