package audit

// allowedTransitions 盘点状态机
//
//	pending -> in_progress -> completed -> closed
//	           in_progress ------------> closed
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusClosed},
	StatusCompleted:  {StatusClosed},
}

// statusOrder 保证 sourcesOf 的输出稳定
var statusOrder = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusClosed}

func canTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourcesOf 返回可以迁移到 to 的全部状态
func sourcesOf(to Status) []Status {
	var out []Status
	for _, from := range statusOrder {
		if canTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// 非迁移类写操作允许的状态
var (
	verifiableStatuses = []Status{StatusInProgress}
	assignableStatuses = []Status{StatusPending, StatusInProgress}
)

// IsKnownStatus 校验盘点状态取值
func IsKnownStatus(s Status) bool {
	for _, st := range statusOrder {
		if st == s {
			return true
		}
	}
	return false
}

// IsKnownType 校验盘点类型取值
func IsKnownType(t Type) bool {
	switch t {
	case TypeStatutory, TypeInternal, TypePhysical, TypeSurprise:
		return true
	}
	return false
}
