package borrow

import "github.com/SlpAus/library-borrow-backend/internal/store"

// NoScore 表示该书还没有任何有效评分
const NoScore = -1.0

// ComputeBookScore 计算图书的平均评分。
// 只统计已写入且非零的评分，未归还或评分为空/为0的记录不计入分子和分母；
// 没有可统计的评分时返回 NoScore。
func ComputeBookScore(borrows []store.Borrow) float64 {
	var sum, count int
	for _, b := range borrows {
		if b.UserScore == nil || *b.UserScore == 0 {
			continue
		}
		sum += *b.UserScore
		count++
	}
	if count == 0 {
		return NoScore
	}
	return float64(sum) / float64(count)
}
