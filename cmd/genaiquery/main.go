// genaiquery is the project retrieval service.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/itissonu/genaiquery/internal/rag"
)

func main() {
	rag.NewApp().Run()
}
