package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"idleassets/api/internal/config"
	"idleassets/api/internal/email"
	"idleassets/api/internal/models"
	"idleassets/api/internal/services"
	"idleassets/api/internal/storage"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery       = "email:deliver"
	TypeImageProcess        = "image:process"
	TypeRentalStatusChanged = "rental:status_changed"
	TypeMessageSent         = "message:sent"
)

// Queues and their priorities.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
	QueueImages   = "images"
)

// Image kinds accepted by the image task.
const (
	ImageKindListingPhoto = "listing_photo"
	ImageKindAvatar       = "avatar"
)

// avatarMaxDimension bounds avatars regardless of the configured photo size.
const avatarMaxDimension = 512

// messagePreviewLength bounds the notification body of a new message.
const messagePreviewLength = 120

// --- Task Client (Enqueuing tasks) ---

// Enqueuer is the part of *asynq.Client the API and the worker use.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func redisClientOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisClientOpt(rdb))
}

// EmailTaskPayload addresses one templated email.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

// ImageTaskPayload points at an uploaded image to normalize in place.
type ImageTaskPayload struct {
	Key  string `json:"key"`
	Kind string `json:"kind"`
}

// RentalStatusChangedPayload describes a committed rental transition.
type RentalStatusChangedPayload struct {
	RentalID string              `json:"rental_id"`
	Status   models.RentalStatus `json:"status"`
	ActorID  string              `json:"actor_id"`
}

// MessageSentPayload describes a stored message.
type MessageSentPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Preview        string `json:"preview"`
}

func newTask(typename string, payload interface{}, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typename, err)
	}
	return asynq.NewTask(typename, data, opts...), nil
}

func NewEmailTask(p EmailTaskPayload) (*asynq.Task, error) {
	return newTask(TypeEmailDelivery, p, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
}

func NewImageTask(p ImageTaskPayload) (*asynq.Task, error) {
	return newTask(TypeImageProcess, p, asynq.Queue(QueueImages), asynq.MaxRetry(3))
}

func NewRentalStatusChangedTask(p RentalStatusChangedPayload) (*asynq.Task, error) {
	return newTask(TypeRentalStatusChanged, p, asynq.Queue(QueueCritical), asynq.MaxRetry(5))
}

func NewMessageSentTask(p MessageSentPayload) (*asynq.Task, error) {
	if runes := []rune(p.Preview); len(runes) > messagePreviewLength {
		p.Preview = strings.TrimSpace(string(runes[:messagePreviewLength])) + "…"
	}
	return newTask(TypeMessageSent, p, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// Enqueue builds and enqueues a task. A nil client drops the task, which
// lets the API run without a worker in tests.
func Enqueue(ctx context.Context, client Enqueuer, task *asynq.Task, err error) error {
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	info, err := client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	log.Printf("Enqueued task %s (%s) on %s", info.ID, task.Type(), info.Queue)
	return nil
}

// --- Task Server (Processing tasks) ---

// Narrow views of the services the handlers need.
type (
	RentalReader interface {
		GetRental(ctx context.Context, rentalID, viewerID string) (*models.Rental, error)
	}
	ProfileReader interface {
		GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	}
	ConversationReader interface {
		GetConversation(ctx context.Context, conversationID, userID string) (*models.Conversation, error)
	}
	NotificationCreator interface {
		Create(ctx context.Context, n *models.Notification) error
	}
)

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	blobStorage          storage.IBlobStorage
	emailTemplateService services.IEmailTemplateService
	rentals              RentalReader
	profiles             ProfileReader
	conversations        ConversationReader
	notifications        NotificationCreator
	taskClient           Enqueuer
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	blobStorage storage.IBlobStorage,
	emailTemplateService services.IEmailTemplateService,
	rentals RentalReader,
	profiles ProfileReader,
	conversations ConversationReader,
	notifications NotificationCreator,
	taskClient Enqueuer,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		blobStorage:          blobStorage,
		emailTemplateService: emailTemplateService,
		rentals:              rentals,
		profiles:             profiles,
		conversations:        conversations,
		notifications:        notifications,
		taskClient:           taskClient,
	}
}

// SetupServer configures the Asynq server and the handlers for the requested
// worker roles. It returns nil when neither role is requested.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		fmt.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	queues := map[string]int{}
	mux := asynq.NewServeMux()

	if isBgWorker {
		queues[QueueCritical] = 6
		queues[QueueDefault] = 3
		queues[QueueLow] = 1
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeRentalStatusChanged, processor.HandleRentalStatusChangedTask)
		mux.HandleFunc(TypeMessageSent, processor.HandleMessageSentTask)
		fmt.Println("Registered background task handlers.")
	}

	if isImageWorker {
		queues[QueueImages] = 5
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		fmt.Println("Registered image processing task handlers.")
	}

	srv := asynq.NewServer(
		redisClientOpt(rdb),
		asynq.Config{
			Queues: queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)
	return srv, mux
}

// --- Task Handlers ---

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}

	locale := payload.Locale
	if locale == "" {
		locale = services.DefaultLocale
	}

	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	msg := email.Message{
		From:       fromAddress,
		To:         payload.To,
		Subject:    email.Render(tmpl.Subject, payload.Data),
		Body:       email.Render(tmpl.Body, payload.Data),
		TemplateID: payload.TemplateID,
	}
	if err := p.emailSender.Send(ctx, []string{msg.To}, msg.Subject, msg.Raw(time.Now())); err != nil {
		log.Printf("Email sending failed, will retry: %v", err)
		return err
	}

	log.Printf("Email task processed successfully: To=%s, Template=%s", payload.To, payload.TemplateID)
	return nil
}

// HandleRentalStatusChangedTask notifies the participant who did not make the
// change, in-app and by email.
func (p *TaskProcessor) HandleRentalStatusChangedTask(ctx context.Context, t *asynq.Task) error {
	var payload RentalStatusChangedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal rental task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RentalID == "" || payload.ActorID == "" || !payload.Status.Valid() {
		return fmt.Errorf("incomplete rental task payload: %w", asynq.SkipRetry)
	}

	r, err := p.rentals.GetRental(ctx, payload.RentalID, payload.ActorID)
	if errors.Is(err, services.ErrRentalNotFound) || errors.Is(err, services.ErrNotParticipant) {
		return fmt.Errorf("rental %s: %v: %w", payload.RentalID, err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	recipientID := r.Counterpart(payload.ActorID)
	listingTitle := models.PlaceholderListingTitle
	if r.Listing != nil {
		listingTitle = r.Listing.Title
	}
	n := rentalNotification(r, payload.Status, listingTitle, recipientID)
	if err := p.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to notify %s about rental %s: %w", recipientID, r.ID, err)
	}
	log.Printf("Notified %s that rental %s is %s", recipientID, r.ID, payload.Status)

	recipient, err := p.profiles.GetProfile(ctx, recipientID)
	if err != nil {
		// The in-app notification is already stored; a retry would duplicate it.
		log.Printf("Skipping rental email to %s: %v", recipientID, err)
		return nil
	}
	emailTask, err := NewEmailTask(EmailTaskPayload{
		To:         recipient.Email,
		TemplateID: services.TemplateRentalStatusChanged,
		Data: map[string]interface{}{
			"name":    recipient.FullName,
			"listing": listingTitle,
			"status":  statusLabel(payload.Status),
			"link":    p.cfg.AppBaseURL + n.Link,
		},
	})
	if err := Enqueue(ctx, p.taskClient, emailTask, err); err != nil {
		log.Printf("Failed to enqueue rental email for %s: %v", recipientID, err)
	}
	return nil
}

func statusLabel(s models.RentalStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func rentalNotification(r *models.Rental, status models.RentalStatus, listingTitle, recipientID string) *models.Notification {
	n := &models.Notification{
		UserID: recipientID,
		Type:   models.NotificationRentalUpdated,
		Title:  fmt.Sprintf("Rental %s", statusLabel(status)),
		Body:   fmt.Sprintf("%s is now %s.", listingTitle, statusLabel(status)),
		Link:   "/activity",
	}
	if status == models.RentalRequested {
		n.Type = models.NotificationRentalRequested
		n.Title = "New rental request"
		n.Body = fmt.Sprintf("%s requested for %s to %s.", listingTitle, r.StartDate, r.EndDate)
	}
	return n
}

// HandleMessageSentTask notifies the recipient of a new message.
func (p *TaskProcessor) HandleMessageSentTask(ctx context.Context, t *asynq.Task) error {
	var payload MessageSentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal message task payload: %v: %w", err, asynq.SkipRetry)
	}

	convo, err := p.conversations.GetConversation(ctx, payload.ConversationID, payload.SenderID)
	if errors.Is(err, services.ErrConversationNotFound) || errors.Is(err, services.ErrNotParticipant) {
		return fmt.Errorf("conversation %s: %v: %w", payload.ConversationID, err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	n := &models.Notification{
		UserID: convo.OtherParticipant(payload.SenderID),
		Type:   models.NotificationNewMessage,
		Title:  "New message",
		Body:   payload.Preview,
		Link:   "/messages?conversation=" + convo.ID,
	}
	if err := p.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to notify about message %s: %w", payload.MessageID, err)
	}
	return nil
}

// HandleImageProcessTask shrinks an uploaded image to the configured bounds
// and writes it back under the same key, so its public URL does not change.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Key == "" {
		return fmt.Errorf("image task without key: %w", asynq.SkipRetry)
	}

	log.Printf("Processing image task: Key=%s, Kind=%s", payload.Key, payload.Kind)

	imgData, contentType, err := p.blobStorage.Download(ctx, payload.Key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		log.Printf("Object %s not found, likely upload failed or key incorrect.", payload.Key)
		return fmt.Errorf("image object not found: %w", asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to download image: %w", err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if maxSizeBytes > 0 && int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes). Skipping.", payload.Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for key %s: %v", payload.Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.ImageMaxDimension)
	if payload.Kind == ImageKindAvatar && (maxDim == 0 || maxDim > avatarMaxDimension) {
		maxDim = avatarMaxDimension
	}
	if maxDim == 0 || (uint(img.Bounds().Dx()) <= maxDim && uint(img.Bounds().Dy()) <= maxDim) {
		log.Printf("Image %s (%s, %dx%d) already within bounds", payload.Key, format, img.Bounds().Dx(), img.Bounds().Dy())
		return nil
	}

	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("failed to re-encode resized image: %w", err)
	}
	log.Printf("Resized image %s from %dx%d (%s) to %dx%d", payload.Key,
		img.Bounds().Dx(), img.Bounds().Dy(), contentType, resized.Bounds().Dx(), resized.Bounds().Dy())

	if _, err := p.blobStorage.Upload(ctx, payload.Key, "image/jpeg", buf.Bytes()); err != nil {
		return fmt.Errorf("failed to upload processed image: %w", err)
	}
	return nil
}
