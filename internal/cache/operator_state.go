package cache

import (
	"context"
	"time"

	"github.com/panierscan/authcore/internal/models"
)

const operatorStateCacheTTL = 10 * time.Minute

// OperatorAuthState 操作员鉴权快照
// 按 API Key 摘要缓存，避免每次请求查询数据库
type OperatorAuthState struct {
	OperatorID uint     `json:"operator_id"`
	Name       string   `json:"name"`
	Roles      []string `json:"roles"`
	UpdatedAt  int64    `json:"updated_at"`
}

func operatorStateKey(keyHash string) string {
	return "auth:operator:" + keyHash
}

// BuildOperatorAuthState 从操作员模型构建鉴权快照
func BuildOperatorAuthState(operator *models.Operator) *OperatorAuthState {
	if operator == nil {
		return nil
	}
	return &OperatorAuthState{
		OperatorID: operator.ID,
		Name:       operator.Name,
		Roles:      []string(operator.Roles),
		UpdatedAt:  time.Now().Unix(),
	}
}

// GetOperatorAuthState 读取操作员鉴权快照
func GetOperatorAuthState(ctx context.Context, keyHash string) (*OperatorAuthState, bool, error) {
	var state OperatorAuthState
	hit, err := GetJSON(ctx, operatorStateKey(keyHash), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetOperatorAuthState 写入操作员鉴权快照
func SetOperatorAuthState(ctx context.Context, keyHash string, state *OperatorAuthState) error {
	if state == nil {
		return nil
	}
	return SetJSON(ctx, operatorStateKey(keyHash), state, operatorStateCacheTTL)
}

// DelOperatorAuthState 删除操作员鉴权快照
func DelOperatorAuthState(ctx context.Context, keyHash string) error {
	return Del(ctx, operatorStateKey(keyHash))
}
