package http

type createRoomReq struct {
	Name     string `json:"name" binding:"required"`
	IsPublic bool   `json:"is_public"`
	Capacity int    `json:"capacity" binding:"gte=0"`
}

type listRoomsReq struct {
	Page     int `form:"page" binding:"gte=0"`
	PageSize int `form:"page_size" binding:"gte=0"`
}

type joinRoomReq struct {
	Code string `json:"code" binding:"required"`
}

type addToQueueReq struct {
	SongID string `json:"song_id" binding:"required"`
	Top    bool   `json:"top"`
}

type changeRoleReq struct {
	Role string `json:"role" binding:"required,oneof=host listener"`
}

type messageResp struct {
	Message string `json:"message"`
}
