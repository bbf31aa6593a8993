//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo keeps server goroutines on the wg.Go form so Add and Done
// cannot drift apart. Shutdown waits on these groups; a missed Done
// hangs the engine on Ctrl+C.
//
// Old pattern:
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    serve()
//	}()
//
// Preferred (Go 1.25+):
//
//	wg.Go(func() {
//	    serve()
//	})
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) so Add and Done stay paired").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`go func() { $*_; $wg.Done() }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) so Add and Done stay paired")

	m.Match(`$wg.Add(1)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("prefer $wg.Go(), it calls Add(1) itself")
}
