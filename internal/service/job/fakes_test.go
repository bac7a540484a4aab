package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.mongodb.org/mongo-driver/bson"

	"playlet/internal/ai"
	"playlet/internal/config"
	creditmodel "playlet/internal/model/credit"
	"playlet/internal/model/drama"
	jobmodel "playlet/internal/model/job"
	"playlet/internal/pkg/ark"
	creditrepo "playlet/internal/repository/credit"
	jobrepo "playlet/internal/repository/job"
	creditsvc "playlet/internal/service/credit"
)

// 内存版仓库和依赖，行为对齐 mongo 实现的语义，测试不依赖外部服务

var errFakeNotFound = errors.New("not found")

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// ---- 任务仓库 ----

type fakeJobRepo struct {
	jobs  map[string]*jobmodel.Job
	order []string
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*jobmodel.Job{}}
}

func (r *fakeJobRepo) Create(ctx context.Context, j *jobmodel.Job) error {
	j.Status = jobmodel.StatusPending
	j.Progress = 0
	cp := *j
	r.jobs[j.ID] = &cp
	r.order = append(r.order, j.ID)
	return nil
}

func (r *fakeJobRepo) FindByID(ctx context.Context, id string) (*jobmodel.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, errFakeNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) FindPending(ctx context.Context, limit int64) ([]*jobmodel.Job, error) {
	var out []*jobmodel.Job
	for _, id := range r.order {
		if int64(len(out)) >= limit {
			break
		}
		if j := r.jobs[id]; j.Status == jobmodel.StatusPending {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) FindByUserID(ctx context.Context, userID string, jobType jobmodel.Type, status jobmodel.Status, limit int64) ([]*jobmodel.Job, error) {
	var out []*jobmodel.Job
	for _, id := range r.order {
		j := r.jobs[id]
		if j.UserID != userID {
			continue
		}
		if jobType != "" && j.Type != jobType {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeJobRepo) FindByProjectID(ctx context.Context, projectID string, jobType jobmodel.Type, limit int64) ([]*jobmodel.Job, error) {
	var out []*jobmodel.Job
	for _, id := range r.order {
		j := r.jobs[id]
		if j.ProjectID != projectID {
			continue
		}
		if jobType != "" && j.Type != jobType {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeJobRepo) Start(ctx context.Context, id string) (*jobmodel.Job, error) {
	j, ok := r.jobs[id]
	if !ok || j.Status != jobmodel.StatusPending {
		return nil, jobrepo.ErrNotClaimable
	}
	j.Status = jobmodel.StatusProcessing
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	j, ok := r.jobs[id]
	if !ok {
		return nil
	}
	if j.Status != jobmodel.StatusProcessing || progress <= j.Progress {
		return nil
	}
	j.Progress = progress
	if message != "" {
		j.ProgressMessage = message
	}
	return nil
}

func (r *fakeJobRepo) Complete(ctx context.Context, id string, resultData string) error {
	j, ok := r.jobs[id]
	if !ok || j.Status != jobmodel.StatusProcessing {
		return nil
	}
	j.Status = jobmodel.StatusCompleted
	j.Progress = 100
	j.ResultData = resultData
	j.ErrorMessage = ""
	return nil
}

func (r *fakeJobRepo) Fail(ctx context.Context, id string, errorMessage string) error {
	j, ok := r.jobs[id]
	if !ok || j.Status != jobmodel.StatusProcessing {
		return nil
	}
	j.Status = jobmodel.StatusFailed
	j.ErrorMessage = errorMessage
	j.ResultData = ""
	return nil
}

func (r *fakeJobRepo) Cancel(ctx context.Context, id string) error {
	j, ok := r.jobs[id]
	if !ok || j.Status != jobmodel.StatusPending {
		return jobrepo.ErrNotClaimable
	}
	j.Status = jobmodel.StatusCancelled
	return nil
}

func (r *fakeJobRepo) MarkImported(ctx context.Context, id string) error {
	j, ok := r.jobs[id]
	if !ok || j.Status != jobmodel.StatusCompleted {
		return nil
	}
	j.IsImported = true
	return nil
}

// ---- 项目/剧集仓库 ----

type fakeProjectRepo struct {
	projects map[string]*drama.Project
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: map[string]*drama.Project{}}
}

func (r *fakeProjectRepo) Create(ctx context.Context, p *drama.Project) error {
	r.projects[p.ID] = p
	return nil
}

func (r *fakeProjectRepo) FindByID(ctx context.Context, id string) (*drama.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return p, nil
}

func (r *fakeProjectRepo) FindByUserID(ctx context.Context, userID string) ([]*drama.Project, error) {
	var out []*drama.Project
	for _, p := range r.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProjectRepo) Update(ctx context.Context, id string, updates bson.M) error { return nil }
func (r *fakeProjectRepo) Delete(ctx context.Context, id string) error                 { return nil }

type fakeEpisodeRepo struct {
	episodes map[string]*drama.Episode
}

func newFakeEpisodeRepo() *fakeEpisodeRepo {
	return &fakeEpisodeRepo{episodes: map[string]*drama.Episode{}}
}

func (r *fakeEpisodeRepo) Create(ctx context.Context, e *drama.Episode) error {
	r.episodes[e.ID] = e
	return nil
}

func (r *fakeEpisodeRepo) FindByID(ctx context.Context, id string) (*drama.Episode, error) {
	e, ok := r.episodes[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return e, nil
}

func (r *fakeEpisodeRepo) FindByIDs(ctx context.Context, ids []string) ([]*drama.Episode, error) {
	var out []*drama.Episode
	for _, id := range ids {
		if e, ok := r.episodes[id]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *fakeEpisodeRepo) FindByProjectID(ctx context.Context, projectID string) ([]*drama.Episode, error) {
	var out []*drama.Episode
	for _, e := range r.episodes {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *fakeEpisodeRepo) Update(ctx context.Context, id string, updates bson.M) error { return nil }
func (r *fakeEpisodeRepo) Delete(ctx context.Context, id string) error                 { return nil }

// ---- 角色/场景仓库 ----

type fakeCharacterRepo struct {
	chars map[string]*drama.Character
}

func newFakeCharacterRepo() *fakeCharacterRepo {
	return &fakeCharacterRepo{chars: map[string]*drama.Character{}}
}

func (r *fakeCharacterRepo) Create(ctx context.Context, c *drama.Character) error {
	r.chars[c.ID] = c
	return nil
}

func (r *fakeCharacterRepo) CreateMany(ctx context.Context, cs []*drama.Character) error {
	for _, c := range cs {
		r.chars[c.ID] = c
	}
	return nil
}

func (r *fakeCharacterRepo) FindByID(ctx context.Context, id string) (*drama.Character, error) {
	c, ok := r.chars[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return c, nil
}

func (r *fakeCharacterRepo) FindByProjectID(ctx context.Context, projectID string) ([]*drama.Character, error) {
	var out []*drama.Character
	for _, c := range r.chars {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCharacterRepo) FindByProjectIDAndNames(ctx context.Context, projectID string, names []string) ([]*drama.Character, error) {
	wanted := map[string]bool{}
	for _, n := range names {
		wanted[n] = true
	}
	var out []*drama.Character
	for _, c := range r.chars {
		if c.ProjectID == projectID && wanted[c.Name] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCharacterRepo) Update(ctx context.Context, id string, updates bson.M) error { return nil }
func (r *fakeCharacterRepo) Delete(ctx context.Context, id string) error                 { return nil }

type fakeCharImageRepo struct {
	images map[string]*drama.CharacterImage
}

func newFakeCharImageRepo() *fakeCharImageRepo {
	return &fakeCharImageRepo{images: map[string]*drama.CharacterImage{}}
}

func (r *fakeCharImageRepo) Create(ctx context.Context, img *drama.CharacterImage) error {
	r.images[img.ID] = img
	return nil
}

func (r *fakeCharImageRepo) FindByID(ctx context.Context, id string) (*drama.CharacterImage, error) {
	img, ok := r.images[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return img, nil
}

func (r *fakeCharImageRepo) FindByCharacterID(ctx context.Context, characterID string) ([]*drama.CharacterImage, error) {
	var out []*drama.CharacterImage
	for _, img := range r.images {
		if img.CharacterID == characterID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (r *fakeCharImageRepo) FindActiveByCharacterID(ctx context.Context, characterID string) (*drama.CharacterImage, error) {
	for _, img := range r.images {
		if img.CharacterID == characterID && img.IsActive {
			return img, nil
		}
	}
	return nil, errFakeNotFound
}

func (r *fakeCharImageRepo) SetActive(ctx context.Context, characterID, imageID string) error {
	target, ok := r.images[imageID]
	if !ok || target.CharacterID != characterID {
		return errFakeNotFound
	}
	for _, img := range r.images {
		if img.CharacterID == characterID {
			img.IsActive = img.ID == imageID
		}
	}
	return nil
}

func (r *fakeCharImageRepo) Update(ctx context.Context, id string, updates bson.M) error {
	img, ok := r.images[id]
	if !ok {
		return errFakeNotFound
	}
	for k, v := range updates {
		switch k {
		case "image_url":
			img.ImageURL = v.(string)
		case "thumbnail_url":
			img.ThumbnailURL = v.(string)
		case "seed":
			img.Seed = asInt64(v)
		case "status":
			img.Status = v.(drama.GenStatus)
		case "is_active":
			img.IsActive = v.(bool)
		}
	}
	return nil
}

func (r *fakeCharImageRepo) Delete(ctx context.Context, id string) error {
	delete(r.images, id)
	return nil
}

type fakeSceneRepo struct {
	scenes map[string]*drama.Scene
}

func newFakeSceneRepo() *fakeSceneRepo {
	return &fakeSceneRepo{scenes: map[string]*drama.Scene{}}
}

func (r *fakeSceneRepo) Create(ctx context.Context, s *drama.Scene) error {
	r.scenes[s.ID] = s
	return nil
}

func (r *fakeSceneRepo) CreateMany(ctx context.Context, ss []*drama.Scene) error {
	for _, s := range ss {
		r.scenes[s.ID] = s
	}
	return nil
}

func (r *fakeSceneRepo) FindByID(ctx context.Context, id string) (*drama.Scene, error) {
	s, ok := r.scenes[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return s, nil
}

func (r *fakeSceneRepo) FindByProjectID(ctx context.Context, projectID string) ([]*drama.Scene, error) {
	var out []*drama.Scene
	for _, s := range r.scenes {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSceneRepo) FindByProjectIDAndNames(ctx context.Context, projectID string, names []string) ([]*drama.Scene, error) {
	wanted := map[string]bool{}
	for _, n := range names {
		wanted[n] = true
	}
	var out []*drama.Scene
	for _, s := range r.scenes {
		if s.ProjectID == projectID && wanted[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSceneRepo) Update(ctx context.Context, id string, updates bson.M) error { return nil }
func (r *fakeSceneRepo) Delete(ctx context.Context, id string) error                 { return nil }

type fakeSceneImageRepo struct {
	images map[string]*drama.SceneImage
}

func newFakeSceneImageRepo() *fakeSceneImageRepo {
	return &fakeSceneImageRepo{images: map[string]*drama.SceneImage{}}
}

func (r *fakeSceneImageRepo) Create(ctx context.Context, img *drama.SceneImage) error {
	r.images[img.ID] = img
	return nil
}

func (r *fakeSceneImageRepo) FindByID(ctx context.Context, id string) (*drama.SceneImage, error) {
	img, ok := r.images[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return img, nil
}

func (r *fakeSceneImageRepo) FindBySceneID(ctx context.Context, sceneID string) ([]*drama.SceneImage, error) {
	var out []*drama.SceneImage
	for _, img := range r.images {
		if img.SceneID == sceneID {
			out = append(out, img)
		}
	}
	return out, nil
}

func (r *fakeSceneImageRepo) FindActiveBySceneAndType(ctx context.Context, sceneID string, imageType drama.SceneImageType) (*drama.SceneImage, error) {
	for _, img := range r.images {
		if img.SceneID == sceneID && img.ImageType == imageType && img.IsActive {
			return img, nil
		}
	}
	return nil, errFakeNotFound
}

func (r *fakeSceneImageRepo) SetActive(ctx context.Context, sceneID string, imageType drama.SceneImageType, imageID string) error {
	target, ok := r.images[imageID]
	if !ok || target.SceneID != sceneID || target.ImageType != imageType {
		return errFakeNotFound
	}
	for _, img := range r.images {
		if img.SceneID == sceneID && img.ImageType == imageType {
			img.IsActive = img.ID == imageID
		}
	}
	return nil
}

func (r *fakeSceneImageRepo) Update(ctx context.Context, id string, updates bson.M) error {
	img, ok := r.images[id]
	if !ok {
		return errFakeNotFound
	}
	for k, v := range updates {
		switch k {
		case "image_url":
			img.ImageURL = v.(string)
		case "thumbnail_url":
			img.ThumbnailURL = v.(string)
		case "seed":
			img.Seed = asInt64(v)
		case "status":
			img.Status = v.(drama.GenStatus)
		case "is_active":
			img.IsActive = v.(bool)
		}
	}
	return nil
}

func (r *fakeSceneImageRepo) Delete(ctx context.Context, id string) error {
	delete(r.images, id)
	return nil
}

// ---- 分镜/视频资产仓库 ----

type fakeShotRepo struct {
	shots map[string]*drama.Shot
}

func newFakeShotRepo() *fakeShotRepo {
	return &fakeShotRepo{shots: map[string]*drama.Shot{}}
}

func (r *fakeShotRepo) Create(ctx context.Context, s *drama.Shot) error {
	r.shots[s.ID] = s
	return nil
}

func (r *fakeShotRepo) CreateMany(ctx context.Context, ss []*drama.Shot) error {
	for _, s := range ss {
		r.shots[s.ID] = s
	}
	return nil
}

func (r *fakeShotRepo) FindByID(ctx context.Context, id string) (*drama.Shot, error) {
	s, ok := r.shots[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return s, nil
}

func (r *fakeShotRepo) FindByIDs(ctx context.Context, ids []string) ([]*drama.Shot, error) {
	var out []*drama.Shot
	for _, id := range ids {
		if s, ok := r.shots[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeShotRepo) FindByEpisodeID(ctx context.Context, episodeID string) ([]*drama.Shot, error) {
	var out []*drama.Shot
	for _, s := range r.shots {
		if s.EpisodeID == episodeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *fakeShotRepo) Update(ctx context.Context, id string, updates bson.M) error {
	s, ok := r.shots[id]
	if !ok {
		return errFakeNotFound
	}
	for k, v := range updates {
		switch k {
		case "image_url":
			s.ImageURL = v.(string)
		case "seed":
			s.Seed = asInt64(v)
		case "status":
			s.Status = v.(drama.GenStatus)
		case "character_id":
			s.CharacterID = v.(string)
		case "scene_id":
			s.SceneID = v.(string)
		}
	}
	return nil
}

func (r *fakeShotRepo) DeleteByEpisodeID(ctx context.Context, episodeID string) error {
	for id, s := range r.shots {
		if s.EpisodeID == episodeID {
			delete(r.shots, id)
		}
	}
	return nil
}

func (r *fakeShotRepo) Delete(ctx context.Context, id string) error {
	delete(r.shots, id)
	return nil
}

type fakeAssetRepo struct {
	assets map[string]*drama.VideoAsset
}

func newFakeAssetRepo() *fakeAssetRepo {
	return &fakeAssetRepo{assets: map[string]*drama.VideoAsset{}}
}

func (r *fakeAssetRepo) Create(ctx context.Context, a *drama.VideoAsset) error {
	r.assets[a.ID] = a
	return nil
}

func (r *fakeAssetRepo) FindByID(ctx context.Context, id string) (*drama.VideoAsset, error) {
	a, ok := r.assets[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return a, nil
}

func (r *fakeAssetRepo) FindByIDs(ctx context.Context, ids []string) ([]*drama.VideoAsset, error) {
	var out []*drama.VideoAsset
	for _, id := range ids {
		if a, ok := r.assets[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAssetRepo) FindByShotID(ctx context.Context, shotID string) ([]*drama.VideoAsset, error) {
	var out []*drama.VideoAsset
	for _, a := range r.assets {
		if a.ShotID == shotID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *fakeAssetRepo) FindActiveByShotID(ctx context.Context, shotID string) (*drama.VideoAsset, error) {
	for _, a := range r.assets {
		if a.ShotID == shotID && a.IsActive {
			return a, nil
		}
	}
	return nil, errFakeNotFound
}

func (r *fakeAssetRepo) NextVersion(ctx context.Context, shotID string) (int, error) {
	max := 0
	for _, a := range r.assets {
		if a.ShotID == shotID && a.Version > max {
			max = a.Version
		}
	}
	return max + 1, nil
}

func (r *fakeAssetRepo) SetActive(ctx context.Context, shotID, assetID string) error {
	target, ok := r.assets[assetID]
	if !ok || target.ShotID != shotID {
		return errFakeNotFound
	}
	for _, a := range r.assets {
		if a.ShotID == shotID {
			a.IsActive = a.ID == assetID
		}
	}
	return nil
}

func (r *fakeAssetRepo) DeleteWithPromotion(ctx context.Context, shotID, assetID string) error {
	target, ok := r.assets[assetID]
	if !ok || target.ShotID != shotID {
		return errFakeNotFound
	}
	wasActive := target.IsActive
	delete(r.assets, assetID)
	if !wasActive {
		return nil
	}
	var newest *drama.VideoAsset
	for _, a := range r.assets {
		if a.ShotID != shotID {
			continue
		}
		if newest == nil || a.Version > newest.Version {
			newest = a
		}
	}
	if newest != nil {
		newest.IsActive = true
	}
	return nil
}

func (r *fakeAssetRepo) Update(ctx context.Context, id string, updates bson.M) error {
	a, ok := r.assets[id]
	if !ok {
		return errFakeNotFound
	}
	for k, v := range updates {
		switch k {
		case "status":
			a.Status = v.(drama.GenStatus)
		case "error_message":
			a.ErrorMessage = v.(string)
		case "video_url":
			a.VideoURL = v.(string)
		case "thumbnail_url":
			a.ThumbnailURL = v.(string)
		case "duration_ms":
			a.DurationMS = asInt64(v)
		case "seed":
			a.Seed = asInt64(v)
		case "is_active":
			a.IsActive = v.(bool)
		}
	}
	return nil
}

// ---- 积分仓库 ----

type fakeCreditRepo struct {
	balances map[string]int64
	txs      []*creditmodel.Transaction
	refunded map[string]bool
}

func newFakeCreditRepo() *fakeCreditRepo {
	return &fakeCreditRepo{balances: map[string]int64{}, refunded: map[string]bool{}}
}

func (r *fakeCreditRepo) GetOrCreateAccount(ctx context.Context, userID string) (*creditmodel.Account, error) {
	return &creditmodel.Account{UserID: userID, Balance: r.balances[userID]}, nil
}

func (r *fakeCreditRepo) Spend(ctx context.Context, userID string, amount int64, description, jobID, assetID string) (*creditmodel.Transaction, error) {
	if r.balances[userID] < amount {
		return nil, creditrepo.ErrInsufficientBalance
	}
	r.balances[userID] -= amount
	tx := &creditmodel.Transaction{
		ID:          fmt.Sprintf("tx-%d", len(r.txs)+1),
		UserID:      userID,
		Type:        creditmodel.TxTypeSpend,
		Amount:      amount,
		Description: description,
		JobID:       jobID,
		AssetID:     assetID,
	}
	r.txs = append(r.txs, tx)
	return tx, nil
}

func (r *fakeCreditRepo) Refund(ctx context.Context, spendTx *creditmodel.Transaction, description string) (*creditmodel.Transaction, error) {
	if r.refunded[spendTx.ID] {
		return nil, creditrepo.ErrAlreadyRefunded
	}
	r.refunded[spendTx.ID] = true
	r.balances[spendTx.UserID] += spendTx.Amount
	tx := &creditmodel.Transaction{
		ID:          fmt.Sprintf("tx-%d", len(r.txs)+1),
		UserID:      spendTx.UserID,
		Type:        creditmodel.TxTypeRefund,
		Amount:      spendTx.Amount,
		Description: description,
		RefundOf:    spendTx.ID,
	}
	r.txs = append(r.txs, tx)
	return tx, nil
}

func (r *fakeCreditRepo) Balance(ctx context.Context, userID string) (int64, error) {
	return r.balances[userID], nil
}

func (r *fakeCreditRepo) Transactions(ctx context.Context, userID string, limit int64) ([]*creditmodel.Transaction, error) {
	var out []*creditmodel.Transaction
	for _, tx := range r.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeCreditRepo) refundCount() int {
	n := 0
	for _, tx := range r.txs {
		if tx.Type == creditmodel.TxTypeRefund {
			n++
		}
	}
	return n
}

// ---- 外部服务 ----

type fakeLLM struct {
	response string
	err      error
	calls    int
	lastReq  *ai.CompletionRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req *ai.CompletionRequest) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeImageGen struct {
	result  *ark.ImageResult
	err     error
	calls   int
	lastReq *ark.ImageRequest
}

func (f *fakeImageGen) GenerateImage(ctx context.Context, req *ark.ImageRequest) (*ark.ImageResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeVideoGen struct {
	result  *ark.VideoResult
	err     error
	calls   int
	lastReq *ark.VideoRequest
}

func (f *fakeVideoGen) GenerateVideo(ctx context.Context, req *ark.VideoRequest) (*ark.VideoResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeUploader struct {
	failFromURL bool
	failUpload  bool
	keys        []string
}

func (f *fakeUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	if f.failUpload {
		return "", errors.New("upload failed")
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeUploader) UploadFromURL(ctx context.Context, key, srcURL, contentType string) (string, error) {
	if f.failFromURL {
		return "", errors.New("upload from url failed")
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type fakeThumbnailer struct {
	frame      []byte
	frameErr   error
	durationMS int64
}

func (f *fakeThumbnailer) ExtractThumbnail(ctx context.Context, videoURL string) ([]byte, error) {
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	return f.frame, nil
}

func (f *fakeThumbnailer) ProbeDuration(ctx context.Context, videoURL string) (int64, error) {
	if f.durationMS <= 0 {
		return 0, errors.New("probe failed")
	}
	return f.durationMS, nil
}

// ---- 测试环境 ----

type testEnv struct {
	jobs        *fakeJobRepo
	projects    *fakeProjectRepo
	episodes    *fakeEpisodeRepo
	characters  *fakeCharacterRepo
	charImages  *fakeCharImageRepo
	scenes      *fakeSceneRepo
	sceneImages *fakeSceneImageRepo
	shots       *fakeShotRepo
	assets      *fakeAssetRepo
	credits     *fakeCreditRepo
	llm         *fakeLLM
	imageGen    *fakeImageGen
	videoGen    *fakeVideoGen
	uploader    *fakeUploader
	thumb       *fakeThumbnailer
	svc         Service
}

const (
	testImageCost          = int64(10)
	testVideoCostPerSecond = int64(20)
)

func newTestEnv() *testEnv {
	env := &testEnv{
		jobs:        newFakeJobRepo(),
		projects:    newFakeProjectRepo(),
		episodes:    newFakeEpisodeRepo(),
		characters:  newFakeCharacterRepo(),
		charImages:  newFakeCharImageRepo(),
		scenes:      newFakeSceneRepo(),
		sceneImages: newFakeSceneImageRepo(),
		shots:       newFakeShotRepo(),
		assets:      newFakeAssetRepo(),
		credits:     newFakeCreditRepo(),
		llm:         &fakeLLM{},
		imageGen:    &fakeImageGen{result: &ark.ImageResult{URL: "https://ark.example.com/tmp/img.jpg", Seed: 42}},
		videoGen:    &fakeVideoGen{result: &ark.VideoResult{URL: "https://ark.example.com/tmp/video.mp4", Seed: 7}},
		uploader:    &fakeUploader{},
		thumb:       &fakeThumbnailer{frame: []byte("jpeg"), durationMS: 5200},
	}

	ledger := creditsvc.NewService(env.credits, config.CreditConfig{
		ImageCost:          testImageCost,
		VideoCostPerSecond: testVideoCostPerSecond,
	})

	env.svc = NewService(Deps{
		JobRepo:        env.jobs,
		ProjectRepo:    env.projects,
		EpisodeRepo:    env.episodes,
		CharacterRepo:  env.characters,
		CharImageRepo:  env.charImages,
		SceneRepo:      env.scenes,
		SceneImageRepo: env.sceneImages,
		ShotRepo:       env.shots,
		AssetRepo:      env.assets,
		LLM:            env.llm,
		ImageGen:       env.imageGen,
		VideoGen:       env.videoGen,
		Uploader:       env.uploader,
		Thumbnailer:    env.thumb,
		Ledger:         ledger,
	})
	return env
}

func (env *testEnv) addProject(id, userID string) *drama.Project {
	p := &drama.Project{ID: id, UserID: userID, Title: "测试短剧", Status: drama.ProjectStatusActive}
	env.projects.projects[id] = p
	return p
}

func (env *testEnv) addEpisode(id, projectID string, seq int, title, script string) *drama.Episode {
	e := &drama.Episode{ID: id, ProjectID: projectID, Sequence: seq, Title: title, ScriptContent: script}
	env.episodes.episodes[id] = e
	return e
}
