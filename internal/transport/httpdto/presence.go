package httpdto

type TypingUsersResponse struct {
	UserIDs []string `json:"user_ids"`
}

type UnreadTotalResponse struct {
	Total int64 `json:"total"`
}
