package dbms

import (
	"context"

	"github.com/pkg/errors"

	pdo_oci8 "github.com/nineinchnick/pdo-oci8"
)

// AQ administers one advanced queue and moves text payloads through it.
type AQ struct {
	conn          *pdo_oci8.Connection
	Name          string
	TableName     string
	TypeName      string
	MaxRetry      int64
	RetryDelay    int64
	RetentionTime int64
	Comment       string
}

func NewAQ(conn *pdo_oci8.Connection, name, typeName string) *AQ {
	return &AQ{
		conn:          conn,
		Name:          name,
		TableName:     name + "_TB",
		TypeName:      typeName,
		RetentionTime: -1,
		Comment:       name,
	}
}

func (aq *AQ) validate() error {
	if aq.conn == nil {
		return errors.New("no connection defined for AQ type")
	}
	if len(aq.Name) == 0 {
		return errors.New("queue name cannot be null")
	}
	if len(aq.TypeName) == 0 {
		return errors.New("type name cannot be null")
	}
	return nil
}

func (aq *AQ) run(ctx context.Context, text string, params map[string]interface{}) error {
	stmt, err := aq.conn.Prepare(ctx, text)
	if err != nil {
		return err
	}
	defer stmt.Close()
	return stmt.Execute(ctx, params)
}

func (aq *AQ) Create(ctx context.Context) error {
	if err := aq.validate(); err != nil {
		return err
	}
	sqlText := `BEGIN
	DBMS_AQADM.CREATE_QUEUE_TABLE (:TB_NAME, :TYPE_NAME);

	DBMS_AQADM.CREATE_QUEUE (
		:QUEUE_NAME, :TB_NAME, DBMS_AQADM.NORMAL_QUEUE,
		:MAX_RETRY, :RETRY_DELAY, :RETENTION_TIME,
		FALSE, :QUEUE_COMMENT);
END;`
	return aq.run(ctx, sqlText, map[string]interface{}{
		"TB_NAME":        aq.TableName,
		"TYPE_NAME":      aq.TypeName,
		"QUEUE_NAME":     aq.Name,
		"MAX_RETRY":      aq.MaxRetry,
		"RETRY_DELAY":    aq.RetryDelay,
		"RETENTION_TIME": aq.RetentionTime,
		"QUEUE_COMMENT":  aq.Comment,
	})
}

func (aq *AQ) Drop(ctx context.Context) error {
	if err := aq.validate(); err != nil {
		return err
	}
	sqlText := `BEGIN
	DBMS_AQADM.DROP_QUEUE(:QUEUE_NAME, FALSE);
	DBMS_AQADM.DROP_QUEUE_TABLE(:TB_NAME);
END;`
	return aq.run(ctx, sqlText, map[string]interface{}{
		"QUEUE_NAME": aq.Name,
		"TB_NAME":    aq.TableName,
	})
}

// Start enables enqueue and dequeue on the queue. PL/SQL booleans cannot
// cross the binding layer, so the flags travel as integers compared inside
// the block.
func (aq *AQ) Start(ctx context.Context, enqueue, dequeue bool) error {
	if err := aq.validate(); err != nil {
		return err
	}
	sqlText := `BEGIN
dbms_aqadm.start_queue (queue_name => :QUEUE_NAME,
                       enqueue => (:ENQUEUE = 1),
                       dequeue => (:DEQUEUE = 1));
 END;`
	return aq.run(ctx, sqlText, map[string]interface{}{
		"QUEUE_NAME": aq.Name,
		"ENQUEUE":    plFlag(enqueue),
		"DEQUEUE":    plFlag(dequeue),
	})
}

// Stop disables enqueue and dequeue on the queue.
func (aq *AQ) Stop(ctx context.Context, enqueue, dequeue bool) error {
	if err := aq.validate(); err != nil {
		return err
	}
	sqlText := `BEGIN
dbms_aqadm.stop_queue(queue_name => :QUEUE_NAME,
                       enqueue => (:ENQUEUE = 1),
                       dequeue => (:DEQUEUE = 1));
 END;`
	return aq.run(ctx, sqlText, map[string]interface{}{
		"QUEUE_NAME": aq.Name,
		"ENQUEUE":    plFlag(enqueue),
		"DEQUEUE":    plFlag(dequeue),
	})
}

// Enqueue puts a payload on the queue and returns the server message id.
func (aq *AQ) Enqueue(ctx context.Context, message string) ([]byte, error) {
	if err := aq.validate(); err != nil {
		return nil, err
	}
	sqlText := `DECLARE
	enqueue_options dbms_aq.enqueue_options_t;
	message_properties dbms_aq.message_properties_t;
BEGIN
	DBMS_AQ.ENQUEUE (
	  queue_name => :QUEUE_NAME,
	  enqueue_options => enqueue_options,
	  message_properties => message_properties,
	  payload => :MSG,
	  msgid => :MSG_ID);
END;`
	stmt, err := aq.conn.Prepare(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	var messageID []byte
	if err = stmt.BindValue("QUEUE_NAME", aq.Name, pdo_oci8.ParamStr); err != nil {
		return nil, err
	}
	if err = stmt.BindValue("MSG", message, pdo_oci8.ParamStr); err != nil {
		return nil, err
	}
	if err = stmt.BindParam("MSG_ID", &messageID, pdo_oci8.ParamStr|pdo_oci8.ParamInOut, 100, nil); err != nil {
		return nil, err
	}
	if err = stmt.Execute(ctx, nil); err != nil {
		return nil, err
	}
	return messageID, nil
}

// Dequeue pops the next payload off the queue.
func (aq *AQ) Dequeue(ctx context.Context, messageSize int) (string, []byte, error) {
	if err := aq.validate(); err != nil {
		return "", nil, err
	}
	sqlText := `DECLARE
	dequeue_options dbms_aq.dequeue_options_t;
	message_properties	dbms_aq.message_properties_t;
BEGIN
	dequeue_options.VISIBILITY := DBMS_AQ.IMMEDIATE;
	DBMS_AQ.DEQUEUE (
		queue_name => :QUEUE_NAME,
		dequeue_options => dequeue_options,
		message_properties => message_properties,
		payload => :MSG,
		msgid => :MSG_ID);
END;`
	stmt, err := aq.conn.Prepare(ctx, sqlText)
	if err != nil {
		return "", nil, err
	}
	defer stmt.Close()
	var (
		message   string
		messageID []byte
	)
	if err = stmt.BindValue("QUEUE_NAME", aq.Name, pdo_oci8.ParamStr); err != nil {
		return "", nil, err
	}
	if err = stmt.BindParam("MSG", &message, pdo_oci8.ParamStr|pdo_oci8.ParamInOut, messageSize, nil); err != nil {
		return "", nil, err
	}
	if err = stmt.BindParam("MSG_ID", &messageID, pdo_oci8.ParamStr|pdo_oci8.ParamInOut, 100, nil); err != nil {
		return "", nil, err
	}
	if err = stmt.Execute(ctx, nil); err != nil {
		return "", nil, err
	}
	return message, messageID, nil
}

func plFlag(value bool) int64 {
	if value {
		return 1
	}
	return 0
}
