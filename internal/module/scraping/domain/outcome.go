package domain

// SoftCode は処理を継続できる想定内の状態を表すコード
type SoftCode string

const (
	// SoftPrivateProfile は非公開プロフィールのため投稿を列挙できなかったことを示します
	SoftPrivateProfile SoftCode = "private_profile"
	// SoftParseFailed はナビゲーション結果を構造化できなかったことを示します
	SoftParseFailed SoftCode = "parse_failed"
	// SoftOutOfWindow は投稿が直近の時間枠外であることを示します
	SoftOutOfWindow SoftCode = "post_older_than_window"
	// SoftLikesUnavailable はいいね一覧にアクセスできなかったことを示します
	SoftLikesUnavailable SoftCode = "likes_unavailable"
)

// SoftCondition は結果に記録されるソフトな状態
type SoftCondition struct {
	Phase   string   `json:"phase"`
	Code    SoftCode `json:"code"`
	Target  string   `json:"target,omitempty"`
	Message string   `json:"message,omitempty"`
}

// OutcomeKind はOutcomeの種別
type OutcomeKind int

const (
	OutcomeOk OutcomeKind = iota
	OutcomeSoft
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOk:
		return "ok"
	case OutcomeSoft:
		return "soft"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome はフェーズの結果を Ok / Soft / Failure のいずれかで表します
// Soft の場合も継続に使う値（空リストや復旧した値）を保持します
type Outcome[T any] struct {
	kind   OutcomeKind
	value  T
	code   SoftCode
	detail string
	err    error
}

// Ok は成功結果を作成します
func Ok[T any](value T) Outcome[T] {
	return Outcome[T]{kind: OutcomeOk, value: value}
}

// Soft はソフトな状態と継続用の値を持つ結果を作成します
func Soft[T any](code SoftCode, value T, detail string) Outcome[T] {
	return Outcome[T]{kind: OutcomeSoft, value: value, code: code, detail: detail}
}

// Failure は中断すべき失敗結果を作成します
func Failure[T any](err error) Outcome[T] {
	return Outcome[T]{kind: OutcomeFailure, err: err}
}

func (o Outcome[T]) Kind() OutcomeKind { return o.kind }
func (o Outcome[T]) Value() T          { return o.value }
func (o Outcome[T]) Code() SoftCode    { return o.code }
func (o Outcome[T]) Detail() string    { return o.detail }
func (o Outcome[T]) Err() error        { return o.err }

// Unwrap は値とエラーを返します。Soft は値として扱われます
func (o Outcome[T]) Unwrap() (T, error) {
	if o.kind == OutcomeFailure {
		var zero T
		return zero, o.err
	}
	return o.value, nil
}

// Condition はSoftの場合に記録用のSoftConditionを返します
func (o Outcome[T]) Condition(phase, target string) (SoftCondition, bool) {
	if o.kind != OutcomeSoft {
		return SoftCondition{}, false
	}
	return SoftCondition{Phase: phase, Code: o.code, Target: target, Message: o.detail}, true
}
