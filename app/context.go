// Package app wires the immutable Config together with every component's
// concrete instance into one struct, threaded by reference instead of
// relying on package-level singletons.
package app

import (
	"github.com/hearthlink/mediavault/config"
	"github.com/hearthlink/mediavault/dao"
	"github.com/hearthlink/mediavault/embedclient"
	"github.com/hearthlink/mediavault/pipeline"
	"github.com/hearthlink/mediavault/search"
	"github.com/hearthlink/mediavault/store"
	"github.com/hearthlink/mediavault/vectorindex"
)

// Context is the one struct every controller depends on.
type Context struct {
	Config   config.Config
	Registry *dao.Registry
	Store    *store.ContentStore
	Embedder *embedclient.Client
	Index    vectorindex.Index
	Pipeline *pipeline.Pipeline
	Search   *search.Engine
}
