// Package pipeline implements the sync run that moves ontology terms from a
// remote OLS catalog into the local store.
//
// # Overview
//
// A run moves through four stages:
//
//  1. Fetch: pages of raw terms are pulled from the catalog with retry and
//     a courtesy delay between pages. A page that exhausts its retries
//     fails the whole run; the catalog being unreachable means the data
//     set cannot be trusted to be complete.
//  2. Transform: each raw term is normalized into the canonical model and
//     validated. Invalid terms are counted as skipped and never fail a
//     run. Every valid term gets a content hash over its label,
//     description, synonyms, and parent references, computed over sorted
//     copies so upstream ordering changes do not produce spurious updates.
//  3. Resolve: distinct parent references fan out across a bounded worker
//     pool. Each reference retries independently; one that exhausts its
//     retries is dropped with a warning (or fails the run when configured
//     strictly) while the rest of the run proceeds.
//  4. Load: pass one upserts terms in batches, one transaction per batch,
//     classifying each term as inserted, updated, or unchanged by content
//     hash. Pass two inserts parent edges and cross-references once every
//     term row exists; an edge whose endpoint is not stored is counted and
//     skipped, never written dangling.
//
// # Execution journal
//
// Every run writes a journal row: created in the running state before the
// first fetch, finalized with success or failure plus counters afterwards.
// A crash mid-run leaves the running row behind as evidence.
//
// # Incremental mode
//
// In incremental mode the stored content hashes are loaded up front and
// terms whose hash is unchanged are counted and dropped before resolution
// and loading, so an incremental run against a current store does almost
// no work.
//
// # Usage
//
//	st, err := store.Open("sqlite", ".ontosync/ontosync.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//	if err := st.InitSchema(ctx); err != nil {
//	    return err
//	}
//
//	client := ols.NewClient(ols.ClientConfig{
//	    BaseURL:    cfg.Source.BaseURL,
//	    OntologyID: cfg.Source.ID,
//	})
//	engine := pipeline.New(cfg, client, st, nil)
//	result, err := engine.Run(ctx)
package pipeline
