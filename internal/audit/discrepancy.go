package audit

// ComputeDiscrepancy 判定一次核查结果是否构成差异
// 未核查（pending）的资产不计入差异；其余状态中除 found 外均为差异，位置不符同样视为差异
func ComputeDiscrepancy(status PhysicalStatus, locationMatched *bool) bool {
	switch status {
	case PhysicalPending:
		return false
	case PhysicalNotFound, PhysicalDamaged, PhysicalExcess:
		return true
	}
	return locationMatched != nil && !*locationMatched
}

// IsVerifiable 核查接口允许写入的结果
func IsVerifiable(status PhysicalStatus) bool {
	switch status {
	case PhysicalFound, PhysicalNotFound, PhysicalDamaged, PhysicalExcess:
		return true
	}
	return false
}

// IsKnownPhysicalStatus 包括 pending 在内的全部取值，用于查询过滤
func IsKnownPhysicalStatus(status PhysicalStatus) bool {
	return status == PhysicalPending || IsVerifiable(status)
}
