package workflow

import "sync"

// Registry はセッション識別子ごとの Set を保持します。
// 旧実装のモジュールレベル・シングルトンを置き換える明示的なコンテナであり、
// 生成は初回アクセス時、破棄は Remove によって行われます。
type Registry struct {
	mu      sync.Mutex
	factory *SetFactory
	sets    map[string]Set
}

// NewRegistry は新しいレジストリを生成します。
func NewRegistry(factory *SetFactory) *Registry {
	return &Registry{
		factory: factory,
		sets:    make(map[string]Set),
	}
}

// Set はセッションの Set を返します。存在しない場合は生成します。
func (r *Registry) Set(sessionID string) Set {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[sessionID]
	if !ok {
		set = r.factory.New()
		r.sets[sessionID] = set
	}
	return set
}

// Remove はセッションの Set を破棄し、進行中のポーリングをすべて止めます。
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	set, ok := r.sets[sessionID]
	delete(r.sets, sessionID)
	r.mu.Unlock()

	if ok {
		set.ResetAll()
	}
}

// Close は保持する全セッションの Set を破棄します。シャットダウン時に呼びます。
func (r *Registry) Close() {
	r.mu.Lock()
	sets := r.sets
	r.sets = make(map[string]Set)
	r.mu.Unlock()

	for _, set := range sets {
		set.ResetAll()
	}
}
