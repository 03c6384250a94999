package domain

// Brief はウィザードの各ステップを通じて段階的に蓄積されるユーザー入力です。
// 各フィールドはそれを要求するステップに到達するまでは任意であり、
// 最終ステップの送信時点で必要なフィールドがすべて揃っていることが不変条件です。
type Brief map[string]string

// Merge は指定されたフィールド群をブリーフに統合し、既存の値を上書きします。
func (b Brief) Merge(fields map[string]string) {
	for k, v := range fields {
		b[k] = v
	}
}

// Has は指定されたフィールドが空でない値を持つか判定します。
func (b Brief) Has(key string) bool {
	return b[key] != ""
}

// MissingFields は required のうち値が空のフィールド名を返します。
func (b Brief) MissingFields(required []string) []string {
	var missing []string
	for _, key := range required {
		if !b.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

// Clone はブリーフの独立した複製を返します。再生成時の再送ペイロード保持に使用します。
func (b Brief) Clone() Brief {
	cloned := make(Brief, len(b))
	for k, v := range b {
		cloned[k] = v
	}
	return cloned
}
